package notion

// Filter is a database query filter. A compound filter sets And or Or; a
// property filter sets Property and exactly one condition.
type Filter struct {
	And []Filter `json:"and,omitempty"`
	Or  []Filter `json:"or,omitempty"`

	Property    string             `json:"property,omitempty"`
	People      *PeopleCondition   `json:"people,omitempty"`
	Status      *EqualityCondition `json:"status,omitempty"`
	Select      *EqualityCondition `json:"select,omitempty"`
	Email       *EqualityCondition `json:"email,omitempty"`
	RichText    *EqualityCondition `json:"rich_text,omitempty"`
	Checkbox    *CheckboxCondition `json:"checkbox,omitempty"`
	MultiSelect *ContainsCondition `json:"multi_select,omitempty"`
}

type PeopleCondition struct {
	Contains string `json:"contains,omitempty"`
}

type EqualityCondition struct {
	Equals string `json:"equals"`
}

type ContainsCondition struct {
	Contains string `json:"contains"`
}

type CheckboxCondition struct {
	Equals bool `json:"equals"`
}

func And(filters ...Filter) Filter {
	return Filter{And: filters}
}

func PeopleContains(property, userID string) Filter {
	return Filter{Property: property, People: &PeopleCondition{Contains: userID}}
}

func StatusEquals(property, name string) Filter {
	return Filter{Property: property, Status: &EqualityCondition{Equals: name}}
}

func EmailEquals(property, email string) Filter {
	return Filter{Property: property, Email: &EqualityCondition{Equals: email}}
}

// Sort orders query results by a property or by a page timestamp.
type Sort struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Direction string `json:"direction"`
}

const Descending = "descending"

// NewestFirst sorts by page creation time, descending.
func NewestFirst() Sort {
	return Sort{Timestamp: "created_time", Direction: Descending}
}

// DatabaseQuery is the body of a database query request.
type DatabaseQuery struct {
	Filter      *Filter `json:"filter,omitempty"`
	Sorts       []Sort  `json:"sorts,omitempty"`
	StartCursor string  `json:"start_cursor,omitempty"`
	PageSize    int     `json:"page_size,omitempty"`
}
