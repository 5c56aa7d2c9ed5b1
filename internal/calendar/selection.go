package calendar

type Phase string

const (
	PhaseEmpty      Phase = "empty"
	PhaseHasCheckin Phase = "has_checkin"
	PhaseHasRange   Phase = "has_range"
)

// Range is the confirmed stay, serialized with local calendar dates.
type Range struct {
	Checkin  Date `json:"checkin"`
	Checkout Date `json:"checkout"`
}

// Selection is the two-click range picker state. The zero value is Empty.
type Selection struct {
	checkin  Date
	checkout Date
	preview  Date
}

func (s *Selection) Phase() Phase {
	switch {
	case s.checkin.IsZero():
		return PhaseEmpty
	case s.checkout.IsZero():
		return PhaseHasCheckin
	default:
		return PhaseHasRange
	}
}

func (s *Selection) Checkin() Date { return s.checkin }

func (s *Selection) Checkout() Date { return s.checkout }

func (s *Selection) Preview() Date { return s.preview }

// Click applies one click on d and reports whether the selection changed.
// Disabled days never trigger a transition.
func (s *Selection) Click(d Date, c Classifier) bool {
	if d.IsZero() || c.IsDisabled(d) {
		return false
	}

	if s.Phase() == PhaseHasCheckin && d.After(s.checkin) {
		s.checkout = d
		s.preview = Date{}

		return true
	}

	s.checkin = d
	s.checkout = Date{}
	s.preview = Date{}

	return true
}

// Hover records a transient range end while only a checkin is chosen.
func (s *Selection) Hover(d Date) {
	if s.Phase() != PhaseHasCheckin {
		return
	}

	s.preview = d
}

func (s *Selection) Leave() {
	s.preview = Date{}
}

func (s *Selection) Reset() {
	*s = Selection{}
}

func (s *Selection) Confirm() (Range, error) {
	if s.Phase() != PhaseHasRange {
		return Range{}, ErrSelectionIncomplete
	}

	return Range{Checkin: s.checkin, Checkout: s.checkout}, nil
}

func (s *Selection) rangeEnd() Date {
	if !s.checkout.IsZero() {
		return s.checkout
	}

	if !s.checkin.IsZero() && s.preview.After(s.checkin) {
		return s.preview
	}

	return Date{}
}
