package services

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/teamtrack/teamtrack/models"
)

const registerSheet = "Register"

// ExportService renders an attendance register as an xlsx workbook: a
// team-name banner row, a header row, then one row per attendee.
type ExportService interface {
	WriteRegister(w io.Writer, session *models.Session, team *models.Team, attendees []models.User) error
	RegisterFilename(session *models.Session, team *models.Team) string
}

type exportService struct {
	loc *time.Location
}

func NewExportService(loc *time.Location) ExportService {
	if loc == nil {
		loc = time.Local
	}
	return &exportService{loc: loc}
}

func (s *exportService) WriteRegister(w io.Writer, session *models.Session, team *models.Team, attendees []models.User) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(registerSheet)
	if err != nil {
		return fmt.Errorf("failed to create register sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	start := session.Start.In(s.loc)
	end := session.End.In(s.loc)
	timeRange := fmt.Sprintf("%s - %s", start.Format("15:04"), end.Format("15:04"))
	if !sameDay(start, end) {
		timeRange = fmt.Sprintf("%s - %s", start.Format("Mon 02 Jan 15:04"), end.Format("Mon 02 Jan 15:04"))
	}

	banner := fmt.Sprintf("%s - %s", team.Name, session.Name)
	if err := f.SetSheetRow(registerSheet, "A1", &[]interface{}{banner}); err != nil {
		return err
	}
	header := []interface{}{"Name", "Date", "Time", "Location", "Email", "Phone"}
	if err := f.SetSheetRow(registerSheet, "A2", &header); err != nil {
		return err
	}

	for i, user := range attendees {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		row := []interface{}{
			user.DisplayName,
			start.Format("02/01/2006"),
			timeRange,
			session.Location,
			user.Email,
			user.PhoneNumber,
		}
		if err := f.SetSheetRow(registerSheet, cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write register workbook: %w", err)
	}
	return nil
}

func (s *exportService) RegisterFilename(session *models.Session, team *models.Team) string {
	return fmt.Sprintf("%s - %s - %s.xlsx",
		session.Name,
		team.Name,
		session.Start.In(s.loc).Format("02-01-2006"),
	)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
