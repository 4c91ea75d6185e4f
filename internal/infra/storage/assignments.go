package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"

	"substitute_sms_notifier/internal/domain/assignment"
)

type assignmentFile struct {
	Assignments []assignment.Record `json:"assignments"`
}

// LoadAssignments reads the assignment file. Both a bare array of records and
// an object with an "assignments" array are accepted. A missing or empty file
// yields no records. Invalid records are skipped; a missing date becomes today.
func (s *FileStore) LoadAssignments(ctx context.Context) ([]assignment.Record, error) {
	data, err := s.readFile(AssignmentsFile)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var raw []assignment.Record
	switch data[0] {
	case '[':
		err = sonic.Unmarshal(data, &raw)
	case '{':
		var doc assignmentFile
		err = sonic.Unmarshal(data, &doc)
		raw = doc.Assignments
	default:
		err = fmt.Errorf("unexpected JSON value")
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", AssignmentsFile, err)
	}

	today := s.now().Format(assignment.DateLayout)
	records := make([]assignment.Record, 0, len(raw))
	for i, rec := range raw {
		check := rec
		check.Substitute = strings.TrimSpace(rec.Substitute)
		if err := s.validate.StructCtx(ctx, check); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"index":      i,
				"substitute": rec.Substitute,
			}).Warn("Skipping invalid assignment record")
			continue
		}
		if strings.TrimSpace(rec.Date) == "" {
			rec.Date = today
		}
		records = append(records, rec)
	}
	return records, nil
}

// SaveAssignments writes records in the object layout.
func (s *FileStore) SaveAssignments(ctx context.Context, records []assignment.Record) error {
	if records == nil {
		records = []assignment.Record{}
	}
	return s.writeJSON(AssignmentsFile, assignmentFile{Assignments: records})
}
