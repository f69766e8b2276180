/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the roster domain
  model from the external contract. Times of day travel as "HH:MM",
  dates as "YYYY-MM-DD", instants as RFC 3339.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Structural validation (required fields, formats) uses validator struct
  tags, checked in the handlers before any parsing. Semantic validation
  (rollover rules, dangling references) belongs to the roster engine.

SEE ALSO:
  - handlers.go: parsing and validation entry points
*/
package api

import (
	"time"

	"github.com/warp/roster-engine/report"
	"github.com/warp/roster-engine/roster"
)

// =============================================================================
// SHIFTS
// =============================================================================

type ShiftDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	StartTime  string `json:"start_time"`
	FinishTime string `json:"finish_time"`
	RollsOver  bool   `json:"rolls_over"`
}

type SaveShiftRequest struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name"`
	StartTime  string `json:"start_time" validate:"required"`
	FinishTime string `json:"finish_time" validate:"required"`
}

func toShiftDTO(s roster.ShiftDefinition) ShiftDTO {
	return ShiftDTO{
		ID:         string(s.ID),
		Name:       s.Name,
		StartTime:  s.Start.String(),
		FinishTime: s.Finish.String(),
		RollsOver:  s.RollsOver(),
	}
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

type AllocationDTO struct {
	ID        string   `json:"id"`
	ShiftID   string   `json:"shift_id"`
	Date      string   `json:"date"`
	Assignees []string `json:"assignees"`
	// The resolved interval, included so clients never re-derive it.
	StartAt  string `json:"start_at,omitempty"`
	FinishAt string `json:"finish_at,omitempty"`
}

type SaveAllocationRequest struct {
	ID        string   `json:"id" validate:"required"`
	ShiftID   string   `json:"shift_id" validate:"required"`
	Date      string   `json:"date" validate:"required"`
	Assignees []string `json:"assignees" validate:"dive,required"`
}

func toAllocationDTO(a roster.Allocation, iv *roster.ResolvedInterval) AllocationDTO {
	dto := AllocationDTO{
		ID:        string(a.ID),
		ShiftID:   string(a.ShiftID),
		Date:      a.Date.String(),
		Assignees: make([]string, len(a.Assignees)),
	}
	for i, s := range a.Assignees {
		dto.Assignees[i] = string(s)
	}
	if iv != nil {
		dto.StartAt = iv.StartAt.Format(time.RFC3339)
		dto.FinishAt = iv.FinishAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// QUERIES
// =============================================================================

// QueryResultDTO carries an identifier set. Order is not meaningful.
type QueryResultDTO struct {
	AllocationIDs []string `json:"allocation_ids"`
}

func toQueryResultDTO(ids []roster.AllocationID) QueryResultDTO {
	out := QueryResultDTO{AllocationIDs: make([]string, len(ids))}
	for i, id := range ids {
		out.AllocationIDs[i] = string(id)
	}
	return out
}

// =============================================================================
// COVERAGE REPORT
// =============================================================================

type SubjectHoursDTO struct {
	Subject     string `json:"subject"`
	Hours       string `json:"hours"`
	Allocations int    `json:"allocations"`
}

type CoverageDTO struct {
	WindowStart  string            `json:"window_start"`
	WindowFinish string            `json:"window_finish"`
	TotalHours   string            `json:"total_hours"`
	Subjects     []SubjectHoursDTO `json:"subjects"`
	Unassigned   int               `json:"unassigned"`
}

func toCoverageDTO(c *report.Coverage) CoverageDTO {
	dto := CoverageDTO{
		WindowStart:  c.WindowStart.Format(time.RFC3339),
		WindowFinish: c.WindowFinish.Format(time.RFC3339),
		TotalHours:   c.TotalHours.String(),
		Subjects:     make([]SubjectHoursDTO, len(c.Subjects)),
		Unassigned:   c.Unassigned,
	}
	for i, s := range c.Subjects {
		dto.Subjects[i] = SubjectHoursDTO{
			Subject:     string(s.Subject),
			Hours:       s.Hours.String(),
			Allocations: s.Allocations,
		}
	}
	return dto
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
