package git

// Element describes one input field a host renders to
// collect a SourceRef from a user.
type Element struct {
	Tag         string `json:"tag"          yaml:"tag"`
	FieldType   string `json:"field_type"   yaml:"field_type"`
	Name        string `json:"name"         yaml:"name"`
	PlaceHolder string `json:"place_holder" yaml:"place_holder"`
}

// Elements returns the fields needed to configure a
// source: repository URL and branch.
func Elements() []Element {
	return []Element{
		{
			Tag:         "Url",
			FieldType:   "text",
			Name:        "scmUrl",
			PlaceHolder: "https://github.com/byte4ever/bobber",
		},
		{
			Tag:         "Branch",
			FieldType:   "text",
			Name:        "scmBranch",
			PlaceHolder: "main",
		},
	}
}
