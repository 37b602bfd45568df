package platform

// Null implementations keep the controller runnable headless, on a bench rig
// without the panel fitted, or in tests.

type NullSurface struct{}

func (NullSurface) Clear()                                    {}
func (NullSurface) DrawText(string, int, int, uint16, uint16) {}
func (NullSurface) FillRect(int, int, int, int, uint16)       {}
func (NullSurface) TextWidth(text string) int                 { return 8 * len(text) }

type NullBacklight struct{}

func (NullBacklight) On()  {}
func (NullBacklight) Off() {}

type NullTouch struct{}

func (NullTouch) Poll() (int, int, bool) { return 0, 0, false }
