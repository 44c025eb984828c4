package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportFormat enumerates supported payroll export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// PayrollExportJob is persisted background export metadata.
type PayrollExportJob struct {
	ID           string              `db:"id" json:"id"`
	Params       PayrollExportParams `db:"params" json:"params"`
	Status       ExportStatus        `db:"status" json:"status"`
	Progress     int                 `db:"progress" json:"progress"`
	ResultURL    *string             `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string              `db:"created_by" json:"created_by"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time          `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string             `db:"error_message" json:"error_message,omitempty"`
}

// PayrollExportParams is stored as JSONB next to the job.
type PayrollExportParams struct {
	AcademicPeriodID string       `json:"academicPeriodId,omitempty"`
	TeacherID        string       `json:"teacherId,omitempty"`
	Format           ExportFormat `json:"format"`
}

// Value marshals params to JSON for persistence.
func (p PayrollExportParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payroll export params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *PayrollExportParams) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*p = PayrollExportParams{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for PayrollExportParams", value)
	}
	if len(data) == 0 {
		*p = PayrollExportParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal payroll export params: %w", err)
	}
	return nil
}
