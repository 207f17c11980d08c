package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// CSVSink writes records to a CSV file, one row per cycle. Repeated joint
// values are packed into a single semicolon-separated column so the row
// width does not depend on the axis count.
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	rows   int
}

var csvHeader = []string{
	"session_id", "seq_no", "feedback_seq_no", "timestamp_ms", "elapsed_s",
	"states_ok",
	"joints", "joint_velocities", "ref_joints", "ref_velocities",
	"pos_x", "pos_y", "pos_z",
	"orient_u0", "orient_u1", "orient_u2", "orient_u3",
	"ref_pos_x", "ref_pos_y", "ref_pos_z",
}

// NewCSVSink creates (or truncates) path and writes the header row.
func NewCSVSink(path string) (*CSVSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create telemetry csv: %w", err)
	}
	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		file.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return &CSVSink{file: file, writer: writer}, nil
}

// WriteRecord appends one row.
func (s *CSVSink) WriteRecord(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := []string{
		rec.SessionID,
		strconv.FormatUint(uint64(rec.SeqNo), 10),
		strconv.FormatUint(uint64(rec.FeedbackSeqNo), 10),
		strconv.FormatUint(uint64(rec.TimestampMS), 10),
		formatFloat(rec.ElapsedSecs),
		strconv.FormatBool(rec.StatesOK),
		joinFloats(rec.Joints),
		joinFloats(rec.JointVelocities),
		joinFloats(rec.RefJoints),
		joinFloats(rec.RefVelocities),
		formatFloat(rec.Position[0]),
		formatFloat(rec.Position[1]),
		formatFloat(rec.Position[2]),
		formatFloat(rec.Orientation[0]),
		formatFloat(rec.Orientation[1]),
		formatFloat(rec.Orientation[2]),
		formatFloat(rec.Orientation[3]),
		formatFloat(rec.RefPosition[0]),
		formatFloat(rec.RefPosition[1]),
		formatFloat(rec.RefPosition[2]),
	}
	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}

	// Flush in batches; rows are tiny and the writer buffers them.
	s.rows++
	if s.rows%256 == 0 {
		s.writer.Flush()
	}
	return s.writer.Error()
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, ";")
}
