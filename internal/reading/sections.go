package reading

// FieldContract bounds the word count of a single section field. The bounds
// are targets for the model; validation treats the minimum as advisory.
type FieldContract struct {
	Name     string `json:"name"`
	MinWords int    `json:"min_words"`
	MaxWords int    `json:"max_words"`
}

// SectionSpec describes one section the model must produce.
type SectionSpec struct {
	Name     string          `json:"name"`
	Title    string          `json:"title"`
	Required bool            `json:"required"`
	Fields   []FieldContract `json:"fields"`
}

// SchemaFragment is the closed vocabulary of sections for one generation
// phase, handed to the prompt builder and the validator.
type SchemaFragment struct {
	Sections []SectionSpec `json:"sections"`
}

// RequiredSections returns the names of all required sections in order.
func (f SchemaFragment) RequiredSections() []string {
	var names []string
	for _, s := range f.Sections {
		if s.Required {
			names = append(names, s.Name)
		}
	}
	return names
}

// Spec returns the section spec by name, or nil if the section is unknown.
func (f SchemaFragment) Spec(name string) *SectionSpec {
	for i := range f.Sections {
		if f.Sections[i].Name == name {
			return &f.Sections[i]
		}
	}
	return nil
}

func narrativeFields(minWords, maxWords int) []FieldContract {
	return []FieldContract{
		{Name: "summary", MinWords: 15, MaxWords: 50},
		{Name: "detail", MinWords: minWords, MaxWords: maxWords},
	}
}

// VisionFragment is the phase-one schema: what the vision call must return
// from the photo alone.
func VisionFragment() SchemaFragment {
	return SchemaFragment{Sections: []SectionSpec{
		{Name: "first_impression", Title: "First Impression", Required: true, Fields: narrativeFields(60, 150)},
		{Name: "facial_signature", Title: "Facial Signature", Required: true, Fields: narrativeFields(60, 150)},
	}}
}

// TeaserFragment is the completion-phase schema for the free reading: the ten
// required teaser sections.
func TeaserFragment() SchemaFragment {
	return SchemaFragment{Sections: []SectionSpec{
		{Name: "first_impression", Title: "First Impression", Required: true, Fields: narrativeFields(60, 150)},
		{Name: "facial_signature", Title: "Facial Signature", Required: true, Fields: narrativeFields(60, 150)},
		{Name: "core_essence", Title: "Core Essence", Required: true, Fields: narrativeFields(80, 200)},
		{Name: "emotional_landscape", Title: "Emotional Landscape", Required: true, Fields: narrativeFields(80, 200)},
		{Name: "natural_strengths", Title: "Natural Strengths", Required: true, Fields: narrativeFields(80, 200)},
		{Name: "hidden_challenges", Title: "Hidden Challenges", Required: true, Fields: narrativeFields(80, 200)},
		{Name: "relationship_style", Title: "Relationship Style", Required: true, Fields: narrativeFields(80, 200)},
		{Name: "career_direction", Title: "Career Direction", Required: true, Fields: narrativeFields(80, 200)},
		{Name: "life_purpose", Title: "Life Purpose", Required: true, Fields: narrativeFields(80, 200)},
		{Name: "year_ahead", Title: "The Year Ahead", Required: true, Fields: narrativeFields(80, 200)},
	}}
}

// FullFragment extends the teaser schema with the premium sections unlocked
// by a purchased reading.
func FullFragment() SchemaFragment {
	fragment := TeaserFragment()
	fragment.Sections = append(fragment.Sections,
		SectionSpec{Name: "love_forecast", Title: "Love Forecast", Required: true, Fields: narrativeFields(100, 260)},
		SectionSpec{Name: "wealth_outlook", Title: "Wealth Outlook", Required: true, Fields: narrativeFields(100, 260)},
		SectionSpec{Name: "inner_shadow", Title: "Inner Shadow", Required: true, Fields: narrativeFields(100, 260)},
		SectionSpec{Name: "guidance", Title: "Guidance", Required: false, Fields: narrativeFields(80, 200)},
	)
	return fragment
}

// FragmentFor returns the completion-phase schema for a reading kind. Legacy
// readings are free text and carry no fragment.
func FragmentFor(kind Kind) SchemaFragment {
	if kind == KindFull {
		return FullFragment()
	}
	return TeaserFragment()
}
