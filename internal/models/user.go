package models

// Department codes accepted for a student profile
const (
	DepartmentEC              = "EC"
	DepartmentEL              = "EL"
	DepartmentIT              = "IT"
	DepartmentMech            = "Mech"
	DepartmentComputerScience = "Computer Science"
)

// User is the student profile every portal view renders from
type User struct {
	StudentID          string         `json:"studentId" validate:"required,max=32"`
	Name               string         `json:"name"`
	Department         string         `json:"department" validate:"omitempty,oneof=EC EL IT Mech 'Computer Science'"`
	Batch              string         `json:"batch"`
	Year               string         `json:"year"`
	Email              string         `json:"email" validate:"omitempty,email"`
	Phone              string         `json:"phone"`
	Photo              string         `json:"photo,omitempty"`
	RegisteredEventIDs []string       `json:"registeredEventIds,omitempty"`
	JoinedClubIDs      []string       `json:"joinedClubIds,omitempty"`
	JoinedSportIDs     []string       `json:"joinedSportIds,omitempty"`
	Attendance         *Attendance    `json:"attendance,omitempty"`
	BorrowedBooks      []BorrowedBook `json:"borrowedBooks,omitempty"`
}

// AttendanceRecord is the per-subject attendance line
type AttendanceRecord struct {
	Name        string   `json:"name"`
	Attended    int      `json:"attended"`
	Total       int      `json:"total"`
	MissedDates []string `json:"missedDates,omitempty"`
}

type AcademicAttendance struct {
	Attended int                `json:"attended"`
	Total    int                `json:"total"`
	Subjects []AttendanceRecord `json:"subjects"`
}

type EventAttendance struct {
	Attended          int      `json:"attended"`
	Total             int      `json:"total"`
	MissedEventTitles []string `json:"missedEventTitles"`
}

// Attendance summarizes academic and event attendance
type Attendance struct {
	Academic AcademicAttendance `json:"academic"`
	Events   EventAttendance    `json:"events"`
}

// BorrowedBook is a library loan shown on the profile
type BorrowedBook struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	BorrowDate string `json:"borrowDate"`
	DueDate    string `json:"dueDate"`
	Category   string `json:"category"`
	CoverImage string `json:"coverImage"`
	Status     string `json:"status"` // "Borrowed", "Overdue", "Renewed"
}

// Clone returns a deep copy so session snapshots never alias account profiles
func (u User) Clone() User {
	c := u
	c.RegisteredEventIDs = cloneStrings(u.RegisteredEventIDs)
	c.JoinedClubIDs = cloneStrings(u.JoinedClubIDs)
	c.JoinedSportIDs = cloneStrings(u.JoinedSportIDs)
	if u.Attendance != nil {
		a := *u.Attendance
		if u.Attendance.Academic.Subjects != nil {
			a.Academic.Subjects = make([]AttendanceRecord, len(u.Attendance.Academic.Subjects))
			for i, s := range u.Attendance.Academic.Subjects {
				s.MissedDates = cloneStrings(s.MissedDates)
				a.Academic.Subjects[i] = s
			}
		}
		a.Events.MissedEventTitles = cloneStrings(u.Attendance.Events.MissedEventTitles)
		c.Attendance = &a
	}
	if u.BorrowedBooks != nil {
		c.BorrowedBooks = append([]BorrowedBook(nil), u.BorrowedBooks...)
	}
	return c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
