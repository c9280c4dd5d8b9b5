package command

import "context"

// GetSetting reads a shell-chosen per-workspace preference (e.g.
// "ui.language"), returning ("", false, nil) if unset.
func (s *Surface) GetSetting(ctx context.Context, label, key string) (string, bool, error) {
	w, err := s.get(label)
	if err != nil {
		return "", false, err
	}
	return w.GetSetting(ctx, key)
}

// SetSetting writes a shell-chosen per-workspace preference.
func (s *Surface) SetSetting(ctx context.Context, label, key, value string) error {
	w, err := s.get(label)
	if err != nil {
		return err
	}
	return w.SetSetting(ctx, key, value)
}
