package services

import (
	"bytes"
	"fmt"

	"learnhub_go/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	gradebookSheet  = "Gradebook"
	attendanceSheet = "Attendance"
)

type ReportService struct {
	db     *gorm.DB
	access *AccessService
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db, access: NewAccessService(db)}
}

// GradebookFilename is the download name of a course's gradebook.
func GradebookFilename(course *models.Course) string {
	return fmt.Sprintf("gradebook_course_%d.xlsx", course.ID)
}

// Gradebook renders a workbook with one row per enrolled student: assignment
// grades with their average, and attendance counts per status.
func (s *ReportService) Gradebook(actor *models.User, courseID uint) (*models.Course, *bytes.Buffer, error) {
	course, err := s.access.ManageCourse(actor, courseID)
	if err != nil {
		return nil, nil, err
	}

	var enrollments []models.Enrollment
	if err := s.db.Preload("Student").
		Where("course_id = ? AND status <> ?", courseID, models.EnrollmentDropped).
		Order("student_id ASC").
		Find(&enrollments).Error; err != nil {
		return nil, nil, err
	}
	var assignments []models.Assignment
	if err := s.db.Where("course_id = ?", courseID).Order("due_date ASC, id ASC").Find(&assignments).Error; err != nil {
		return nil, nil, err
	}
	var submissions []models.Submission
	if err := s.db.Joins("JOIN assignments ON assignments.id = submissions.assignment_id").
		Where("assignments.course_id = ? AND submissions.grade IS NOT NULL", courseID).
		Find(&submissions).Error; err != nil {
		return nil, nil, err
	}
	var attendance []struct {
		StudentID uint
		Status    string
		Total     int64
	}
	if err := s.db.Model(&models.Attendance{}).
		Select("attendances.student_id AS student_id, attendances.status AS status, COUNT(*) AS total").
		Joins("JOIN class_sessions ON class_sessions.id = attendances.session_id").
		Where("class_sessions.course_id = ?", courseID).
		Group("attendances.student_id, attendances.status").
		Scan(&attendance).Error; err != nil {
		return nil, nil, err
	}

	grades := map[[2]uint]float64{}
	for _, sub := range submissions {
		grades[[2]uint{sub.StudentID, sub.AssignmentID}] = *sub.Grade
	}
	counts := map[uint]map[string]int64{}
	for _, a := range attendance {
		if counts[a.StudentID] == nil {
			counts[a.StudentID] = map[string]int64{}
		}
		counts[a.StudentID][a.Status] = a.Total
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", gradebookSheet); err != nil {
		return nil, nil, err
	}
	if _, err := f.NewSheet(attendanceSheet); err != nil {
		return nil, nil, err
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, nil, err
	}

	// Gradebook: student, email, one column per assignment, average
	gradeHeader := []interface{}{"Student", "Email"}
	for _, a := range assignments {
		gradeHeader = append(gradeHeader, fmt.Sprintf("%s (/%g)", a.Title, a.MaxPoints))
	}
	gradeHeader = append(gradeHeader, "Average %")
	if err := writeRow(f, gradebookSheet, 1, gradeHeader); err != nil {
		return nil, nil, err
	}

	// Attendance: student, email, per-status counts
	statuses := []string{models.AttendancePresent, models.AttendanceLate, models.AttendanceAbsent, models.AttendanceExcused}
	attHeader := []interface{}{"Student", "Email"}
	for _, st := range statuses {
		attHeader = append(attHeader, st)
	}
	attHeader = append(attHeader, "Rate %")
	if err := writeRow(f, attendanceSheet, 1, attHeader); err != nil {
		return nil, nil, err
	}

	for i, e := range enrollments {
		name, email := "", ""
		if e.Student != nil {
			name, email = e.Student.Name, e.Student.Email
		}

		row := []interface{}{name, email}
		var percentSum float64
		var graded int
		for _, a := range assignments {
			g, ok := grades[[2]uint{e.StudentID, a.ID}]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, g)
			if a.MaxPoints > 0 {
				percentSum += g / a.MaxPoints * 100
				graded++
			}
		}
		if graded > 0 {
			row = append(row, round2(percentSum/float64(graded)))
		} else {
			row = append(row, "")
		}
		if err := writeRow(f, gradebookSheet, i+2, row); err != nil {
			return nil, nil, err
		}

		var rows []statusCount
		att := []interface{}{name, email}
		for _, st := range statuses {
			n := counts[e.StudentID][st]
			att = append(att, n)
			rows = append(rows, statusCount{Status: st, Total: n})
		}
		att = append(att, round2(summarize(rows).Rate))
		if err := writeRow(f, attendanceSheet, i+2, att); err != nil {
			return nil, nil, err
		}
	}

	for _, sheet := range []string{gradebookSheet, attendanceSheet} {
		last, _ := excelize.ColumnNumberToName(len(gradeHeader))
		if sheet == attendanceSheet {
			last, _ = excelize.ColumnNumberToName(len(attHeader))
		}
		if err := f.SetCellStyle(sheet, "A1", last+"1", header); err != nil {
			return nil, nil, err
		}
		if err := f.SetColWidth(sheet, "A", "B", 28); err != nil {
			return nil, nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, nil, err
	}
	return course, buf, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
