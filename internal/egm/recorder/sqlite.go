package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

const cycleSchema = `
CREATE TABLE IF NOT EXISTS egm_cycles (
	session_id       TEXT NOT NULL,
	seq_no           INTEGER NOT NULL,
	feedback_seq_no  INTEGER NOT NULL,
	timestamp_ms     INTEGER NOT NULL,
	elapsed_s        REAL NOT NULL,
	states_ok        INTEGER NOT NULL,
	joints_json      TEXT,
	joint_vel_json   TEXT,
	ref_joints_json  TEXT,
	ref_vel_json     TEXT,
	pos_x            REAL, pos_y REAL, pos_z REAL,
	orient_u0        REAL, orient_u1 REAL, orient_u2 REAL, orient_u3 REAL,
	ref_pos_x        REAL, ref_pos_y REAL, ref_pos_z REAL,
	PRIMARY KEY (session_id, seq_no)
);
CREATE INDEX IF NOT EXISTS idx_egm_cycles_session ON egm_cycles(session_id);
`

// SQLiteStore persists cycle records to a sqlite database for offline
// analysis.
type SQLiteStore struct {
	db     *sql.DB
	insert *sql.Stmt
}

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the cycle schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry db: %w", err)
	}
	if _, err := db.Exec(cycleSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init telemetry schema: %w", err)
	}

	insert, err := db.Prepare(`
		INSERT INTO egm_cycles (
			session_id, seq_no, feedback_seq_no, timestamp_ms, elapsed_s,
			states_ok,
			joints_json, joint_vel_json, ref_joints_json, ref_vel_json,
			pos_x, pos_y, pos_z,
			orient_u0, orient_u1, orient_u2, orient_u3,
			ref_pos_x, ref_pos_y, ref_pos_z
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare cycle insert: %w", err)
	}
	return &SQLiteStore{db: db, insert: insert}, nil
}

// WriteRecord inserts one cycle row.
func (s *SQLiteStore) WriteRecord(rec Record) error {
	_, err := s.insert.Exec(
		rec.SessionID,
		rec.SeqNo,
		rec.FeedbackSeqNo,
		rec.TimestampMS,
		rec.ElapsedSecs,
		rec.StatesOK,
		jsonFloats(rec.Joints),
		jsonFloats(rec.JointVelocities),
		jsonFloats(rec.RefJoints),
		jsonFloats(rec.RefVelocities),
		rec.Position[0], rec.Position[1], rec.Position[2],
		rec.Orientation[0], rec.Orientation[1], rec.Orientation[2], rec.Orientation[3],
		rec.RefPosition[0], rec.RefPosition[1], rec.RefPosition[2],
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

// SessionCycleCount returns the number of recorded cycles for a session.
func (s *SQLiteStore) SessionCycleCount(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM egm_cycles WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count session cycles: %w", err)
	}
	return n, nil
}

// Close releases the prepared statement and database handle.
func (s *SQLiteStore) Close() error {
	if s.insert != nil {
		s.insert.Close()
	}
	return s.db.Close()
}

func jsonFloats(vals []float64) string {
	if len(vals) == 0 {
		return "[]"
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return "[]"
	}
	return string(b)
}
