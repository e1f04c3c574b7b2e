package present

import "errors"

// Multi forwards every call to each of its surfaces in order.
type Multi []Surface

var _ Surface = Multi(nil)

func (m Multi) ShowText(text string) {
	for _, s := range m {
		s.ShowText(text)
	}
}

func (m Multi) ShowImage(path string) {
	for _, s := range m {
		s.ShowImage(path)
	}
}

func (m Multi) ShowImages(paths []string) {
	for _, s := range m {
		s.ShowImages(paths)
	}
}

func (m Multi) HideImages() {
	for _, s := range m {
		s.HideImages()
	}
}

func (m Multi) PlayIdle() {
	for _, s := range m {
		s.PlayIdle()
	}
}

func (m Multi) StopIdle() {
	for _, s := range m {
		s.StopIdle()
	}
}

func (m Multi) SetBackground(color string) {
	for _, s := range m {
		s.SetBackground(color)
	}
}

func (m Multi) SetHighlight(on bool) {
	for _, s := range m {
		s.SetHighlight(on)
	}
}

// Close closes every surface and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
