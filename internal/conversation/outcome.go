package conversation

// Vendor-imposed limits on interactive message shapes.
const (
	MaxButtons      = 3
	MaxListSections = 10
	MaxListRows     = 10
	maxButtonTitle  = 20
	maxRowTitle     = 24
)

// Button is one tappable reply option.
type Button struct {
	ID    string
	Label string
}

// ListRow is one selectable row inside a list section.
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// ListSection groups rows under an optional title.
type ListSection struct {
	Title string
	Rows  []ListRow
}

// OutcomeKind tags which content variant an Outcome carries.
type OutcomeKind string

const (
	OutcomeText     OutcomeKind = "text"
	OutcomeButtons  OutcomeKind = "buttons"
	OutcomeList     OutcomeKind = "list"
	OutcomeDocument OutcomeKind = "document"
)

// Outcome is what every handler returns: exactly one content variant, plus
// an optional context delta and an optional transition request. A nil
// TransitionTo means the session stays where it is.
type Outcome struct {
	Kind OutcomeKind

	// Shared across interactive variants.
	Body   string
	Header string
	Footer string

	// Buttons variant.
	Buttons []Button

	// List variant.
	ButtonLabel string
	Sections    []ListSection

	// Document variant.
	DocumentURL string
	Filename    string
	Caption     string

	UpdateContext Context
	TransitionTo  *State
	// ClearContext replaces the whole context with UpdateContext instead of
	// merging. Used by cancel paths.
	ClearContext bool
}

// TextOutcome builds a plain text reply.
func TextOutcome(body string) Outcome {
	return Outcome{Kind: OutcomeText, Body: body}
}

// ButtonsOutcome builds a button reply, truncating to the vendor caps.
func ButtonsOutcome(body string, buttons []Button) Outcome {
	if len(buttons) > MaxButtons {
		buttons = buttons[:MaxButtons]
	}
	for i := range buttons {
		buttons[i].Label = truncate(buttons[i].Label, maxButtonTitle)
	}
	return Outcome{Kind: OutcomeButtons, Body: body, Buttons: buttons}
}

// ListOutcome builds a list reply, trimming sections and rows to the vendor
// caps. The row cap is global across sections, not per section.
func ListOutcome(body, buttonLabel string, sections []ListSection) Outcome {
	if len(sections) > MaxListSections {
		sections = sections[:MaxListSections]
	}
	total := 0
	trimmed := make([]ListSection, 0, len(sections))
	for _, sec := range sections {
		if total >= MaxListRows {
			break
		}
		if remaining := MaxListRows - total; len(sec.Rows) > remaining {
			sec.Rows = sec.Rows[:remaining]
		}
		for i := range sec.Rows {
			sec.Rows[i].Title = truncate(sec.Rows[i].Title, maxRowTitle)
		}
		total += len(sec.Rows)
		trimmed = append(trimmed, sec)
	}
	return Outcome{Kind: OutcomeList, Body: body, ButtonLabel: buttonLabel, Sections: trimmed}
}

// DocumentOutcome builds a document reply.
func DocumentOutcome(url, filename, caption string) Outcome {
	return Outcome{Kind: OutcomeDocument, DocumentURL: url, Filename: filename, Caption: caption}
}

// WithContext attaches a context delta.
func (o Outcome) WithContext(delta Context) Outcome {
	o.UpdateContext = delta
	return o
}

// WithTransition attaches a transition request.
func (o Outcome) WithTransition(target State) Outcome {
	o.TransitionTo = &target
	return o
}

// WithClearContext marks the outcome as replacing context outright.
func (o Outcome) WithClearContext() Outcome {
	o.ClearContext = true
	if o.UpdateContext == nil {
		o.UpdateContext = Context{}
	}
	return o
}

// truncate caps s at max bytes without splitting a multibyte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := 0
	for i := range s {
		if i > max {
			break
		}
		cut = i
	}
	return s[:cut]
}
