// Package analyzer defines the contract with the external image-recognition
// service and the classification of its responses. Backends live in the
// webhook and claude subpackages.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kingpromise/promeals/internal/domain"
	"github.com/kingpromise/promeals/internal/nutrition"
)

// Status classifies one analysis round-trip.
type Status string

const (
	// StatusReady means the response carried a usable food list.
	StatusReady Status = "ready"
	// StatusPending means the backing workflow was merely started; the
	// outcome carries the placeholder result so the user is not blocked.
	StatusPending Status = "pending"
	// StatusFailed means a transport error, non-success status, or a
	// response matching no known shape. The attempt is terminal; retries
	// are always user-initiated.
	StatusFailed Status = "failed"
)

// Outcome is the result of one Analyze call. Result is set for StatusReady
// and StatusPending; Message carries the human-readable failure reason for
// StatusFailed.
type Outcome struct {
	Status  Status
	Result  *domain.NutritionResult
	Message string
}

// Client sends one image to a recognition backend. Implementations never
// retry on their own.
type Client interface {
	Analyze(ctx context.Context, imageData []byte, mimeType string) Outcome
}

// FailedError surfaces a failed analysis attempt to callers as an error.
type FailedError struct {
	Message string
}

func (e *FailedError) Error() string { return e.Message }

// Failedf builds a failed Outcome.
func Failedf(format string, args ...any) Outcome {
	return Outcome{Status: StatusFailed, Message: fmt.Sprintf(format, args...)}
}

// WorkflowStartedMessage is the acknowledgement the recognizer sends when it
// has queued the analysis asynchronously instead of answering inline.
const WorkflowStartedMessage = "Workflow was started"

// envelope mirrors the recognizer's known response payloads.
type envelope struct {
	Output *struct {
		Food []domain.FoodItem `json:"food"`
	} `json:"output"`
	Message string `json:"message"`
}

// Classify maps a raw 2xx response body to an Outcome. Totals are always
// recomputed locally from the item list; a server-supplied total is ignored,
// and absent numeric fields count as zero.
func Classify(body []byte) Outcome {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Failedf("unrecognized analyzer response: %v", err)
	}

	if env.Output != nil && env.Output.Food != nil {
		items := env.Output.Food
		return Outcome{
			Status: StatusReady,
			Result: &domain.NutritionResult{
				Food:   items,
				Total:  nutrition.SumItems(items),
				Source: domain.SourceAnalysis,
			},
		}
	}

	if env.Message == WorkflowStartedMessage {
		return Outcome{Status: StatusPending, Result: PlaceholderResult()}
	}

	return Failedf("analyzer response carried no nutrition data")
}

// PlaceholderResult returns a fresh copy of the fixed demonstration result
// used when the recognizer only acknowledged the request. The totals are the
// literal values shown to the user, not a recomputation, so they compare
// exactly. Callers can tell it apart from a real analysis by its Source.
func PlaceholderResult() *domain.NutritionResult {
	return &domain.NutritionResult{
		Food: []domain.FoodItem{
			{Name: "Mixed Green Salad", Quantity: "1 large bowl (200g)", Calories: 45, Protein: 3.2, Carbs: 8.5, Fat: 0.8},
			{Name: "Grilled Salmon", Quantity: "1 fillet (150g)", Calories: 280, Protein: 39.2, Carbs: 0, Fat: 12.4},
			{Name: "Cherry Tomatoes", Quantity: "6 pieces (100g)", Calories: 18, Protein: 0.9, Carbs: 3.9, Fat: 0.2},
		},
		Total:  domain.NutritionTotals{Calories: 343, Protein: 43.3, Carbs: 12.4, Fat: 13.4},
		Source: domain.SourcePlaceholder,
	}
}
