package flow

// StepName identifies a step of the contribution wizard
type StepName string

const (
	StepProfile StepName = "PROFILE"
	StepDetails StepName = "DETAILS"
	StepPayment StepName = "PAYMENT"
	StepSummary StepName = "SUMMARY"
)

var orderedSteps = []StepName{StepProfile, StepDetails, StepPayment, StepSummary}

var validSteps = map[StepName]bool{
	StepProfile: true,
	StepDetails: true,
	StepPayment: true,
	StepSummary: true,
}

// String returns the string representation of the step name
func (n StepName) String() string {
	return string(n)
}

// IsValid returns true if the step name is a known wizard step
func (n StepName) IsValid() bool {
	return validSteps[n]
}

// Step is one entry of the wizard. Identity (Name, Index) is fixed at flow
// creation; only Visited and Completed change over the flow's lifetime.
type Step struct {
	Name      StepName
	Index     int
	Visited   bool
	Completed bool
}

// newSteps creates the ordered step list for a fresh flow.
// The first step starts visited since the flow opens on it.
func newSteps() []Step {
	steps := make([]Step, len(orderedSteps))
	for i, name := range orderedSteps {
		steps[i] = Step{Name: name, Index: i}
	}
	steps[0].Visited = true
	return steps
}

// stepIndex returns the index of a step name, or -1 if unknown
func stepIndex(name StepName) int {
	for i, n := range orderedSteps {
		if n == name {
			return i
		}
	}
	return -1
}
