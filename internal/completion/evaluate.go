package completion

import "github.com/izumi-lms/izumi-api/internal/models"

// CompletionThreshold is the inclusive percentage of content modules a
// student must complete, on top of every quiz, to complete a course.
const CompletionThreshold = 70.0

// Result is the outcome of evaluating one progress record.
type Result struct {
	Status                  models.CompletionStatus `json:"completion_status"`
	Percentage              float64                 `json:"completion_percentage"`
	TotalContentModules     int                     `json:"total_content_modules"`
	CompletedContentModules int                     `json:"completed_content_modules"`
	QuizModules             int                     `json:"quiz_modules"`
	AllQuizzesCompleted     bool                    `json:"all_quizzes_completed"`
}

// Evaluate applies the completion rule to the content modules of a course and
// a student's progress entries. It is total and never mutates its inputs.
func Evaluate(content []models.Module, statuses []models.ModuleStatus) Result {
	completed := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		if status.Completed {
			completed[status.ModuleID] = struct{}{}
		}
	}

	result := Result{
		TotalContentModules: len(content),
		AllQuizzesCompleted: true,
	}

	for _, module := range content {
		_, done := completed[module.ID]
		if done {
			result.CompletedContentModules++
		}
		if module.IsQuiz() {
			result.QuizModules++
			if !done {
				result.AllQuizzesCompleted = false
			}
		}
	}

	if result.TotalContentModules > 0 {
		result.Percentage = float64(result.CompletedContentModules) * 100 / float64(result.TotalContentModules)
	}

	result.Status = models.CompletionInProgress
	if result.Percentage >= CompletionThreshold && result.AllQuizzesCompleted {
		result.Status = models.CompletionCompleted
	}

	return result
}

// EvaluateCourse flattens course and evaluates statuses against it.
func EvaluateCourse(course models.Course, statuses []models.ModuleStatus) Result {
	return Evaluate(ContentModules(course), statuses)
}

// NeedsRefresh reports whether a cached evaluation is stale because the
// course's content-module count differs from the snapshot.
func NeedsRefresh(course models.Course, snapshotCount int) bool {
	return len(ContentModules(course)) != snapshotCount
}
