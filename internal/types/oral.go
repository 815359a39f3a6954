package types

// Oral assessment dimensions.
const (
	DimensionStrategy         = "strategy"
	DimensionReasoning        = "reasoning"
	DimensionRepresentations  = "representations"
	DimensionModeling         = "modeling"
	DimensionCommunication    = "communication"
	DimensionSubjectKnowledge = "subject_knowledge"
)

// OralTest is an oral assessment, kept separate from written tests.
type OralTest struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Description        string             `json:"description,omitempty"`
	Date               string             `json:"date"`
	Topics             []string           `json:"topics,omitempty"`
	Labels             []string           `json:"labels,omitempty"`
	StudentAssessments []OralFeedbackData `json:"studentAssessments"`
	GeneralNotes       string             `json:"generalNotes,omitempty"`
	CreatedDate        string             `json:"createdDate"`
	LastModified       string             `json:"lastModified"`
}

// OralFeedbackDimension is the grade for one assessment dimension.
type OralFeedbackDimension struct {
	Dimension string   `json:"dimension"`
	Points    int      `json:"points"`
	Comment   string   `json:"comment"`
	Weight    *float64 `json:"weight,omitempty"`
}

// OralFeedbackData is one student's oral assessment.
type OralFeedbackData struct {
	StudentID           string                  `json:"studentId"`
	Dimensions          []OralFeedbackDimension `json:"dimensions"`
	GeneralObservations string                  `json:"generalObservations"`
	TaskReferences      []string                `json:"taskReferences,omitempty"`
	RecordedDate        string                  `json:"recordedDate,omitempty"`
	Duration            *int                    `json:"duration,omitempty"`
	CompletedDate       string                  `json:"completedDate,omitempty"`
	Score               *int                    `json:"score,omitempty"`
}
