// Package script hosts the scripting runtime: a single goja.Runtime per
// workspace, guarded by a mutex so every Engine handle behaves as
// Send+Sync even though goja.Runtime itself is not goroutine-safe.
//
// Scripts are authored in JavaScript; goja (github.com/dop251/goja)
// provides the runtime, and its host-function binding model maps
// directly onto the query/action host functions scripts call. Script
// files are still named "*.rhai" in the archive wire format — only the
// file extension is a legacy of an earlier format, not the language.
package script

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/logging"
	"github.com/careck/krillnotes/internal/model"
	"github.com/careck/krillnotes/internal/schema"
)

// TreeAction is a registered add_tree_action(label, types, closure) entry.
type TreeAction struct {
	Label           string
	ApplicableTypes []string
	fn              goja.Callable
}

// Engine owns one goja.Runtime and the hook/action closures extracted
// from the scripts loaded into it.
type Engine struct {
	mu       sync.Mutex
	vm       *goja.Runtime
	registry *schema.Registry

	hookSlots  []goja.Callable // indexed by Schema.HookRefs[hookName]
	actions    []*TreeAction
	queryCtx   *model.QueryContext
	actionCtx  *model.ActionTxContext
	loadErrors []schema.ScriptError

	currentScript string // script name being evaluated; used to tag registry errors
}

// NewEngine builds an Engine bound to registry. Call Reload (or LoadScript
// repeatedly) before running any hook.
func NewEngine(registry *schema.Registry) *Engine {
	e := &Engine{registry: registry}
	e.resetRuntime()
	return e
}

func (e *Engine) resetRuntime() {
	e.vm = goja.New()
	e.hookSlots = nil
	e.actions = nil
	e.queryCtx = nil
	e.actionCtx = nil
	e.bindHostFunctions()
}

// resolveHook looks up the callable bound to s's hookName, if any.
func (e *Engine) resolveHook(s *model.Schema, hookName model.HookName) (goja.Callable, bool) {
	idx, ok := s.HookRefs[hookName]
	if !ok || idx < 0 || idx >= len(e.hookSlots) {
		return nil, false
	}
	return e.hookSlots[idx], true
}

// Reload clears the registry and runtime, then evaluates every enabled
// script in ascending load_order. Per-script/per-name errors are
// collected, not fatal to the rest of the pass.
func (e *Engine) Reload(scripts []*model.UserScript) []schema.ScriptError {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry.Clear()
	e.resetRuntime()
	e.loadErrors = nil

	for _, s := range scripts {
		if !s.Enabled {
			continue
		}
		e.loadScriptLocked(s.ID, s.Name, s.SourceCode)
	}
	return e.loadErrors
}

// LoadScript evaluates one additional script into the already-running
// runtime, without clearing previously loaded schemas. Used when adding a
// single new script without a full reload.
func (e *Engine) LoadScript(scriptID, scriptName, source string) []schema.ScriptError {
	e.mu.Lock()
	defer e.mu.Unlock()
	before := len(e.loadErrors)
	e.loadScriptLocked(scriptID, scriptName, source)
	return e.loadErrors[before:]
}

func (e *Engine) loadScriptLocked(scriptID, scriptName, source string) {
	log := logging.WithComponent("script")
	e.currentScript = scriptName
	defer func() { e.currentScript = "" }()

	_, err := e.vm.RunString(source)
	if err != nil {
		log.Warn().Err(err).Str("script", scriptName).Msg("script evaluation failed")
		e.loadErrors = append(e.loadErrors, schema.ScriptError{
			ScriptName: scriptName,
			Message:    fmt.Sprintf("evaluation failed: %v", err),
		})
	}
}

// LoadErrors returns every ScriptError collected since the most recent
// Reload, including those from LoadScript calls made after it.
func (e *Engine) LoadErrors() []schema.ScriptError {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadErrors
}

// Actions returns every add_tree_action registration currently loaded.
func (e *Engine) Actions() []*TreeAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.actions
}

// ActionsFor returns the tree actions applicable to nodeType.
func (e *Engine) ActionsFor(nodeType string) []*TreeAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*TreeAction
	for _, a := range e.actions {
		for _, t := range a.ApplicableTypes {
			if t == nodeType {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// actionByLabel finds a registered action; callers must hold e.mu.
func (e *Engine) actionByLabel(label string) *TreeAction {
	for _, a := range e.actions {
		if a.Label == label {
			return a
		}
	}
	return nil
}

func toScriptingErr(prefix string, err error) error {
	return krillerr.Wrap(krillerr.Scripting, prefix, err)
}
