// Package attendance tracks who was seen during a session, keeps the
// attendance log and exports it as a spreadsheet.
package attendance

import (
	"image"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "attendance")

// Record is one attendance entry. Date and Time are local wall-clock strings
// taken from the same clock reading.
type Record struct {
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Name      string    `json:"name"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

// NewRecord stamps a record with a clock reading.
func NewRecord(name, sessionID string, at time.Time) Record {
	return Record{
		Date:      at.Format(constants.DateLayout),
		Time:      at.Format(constants.TimeLayout),
		Name:      name,
		SessionID: sessionID,
		At:        at,
	}
}

// Recognition is one face seen in a frame.
type Recognition struct {
	Identity string          `json:"identity"`
	BBox     image.Rectangle `json:"bbox"`
	Distance float64         `json:"distance"`
	Score    float64         `json:"score"`
}
