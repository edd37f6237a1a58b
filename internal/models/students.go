package models

type Student struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	StudentNumber string `json:"student_number"`
	ClassLevel    string `json:"class_level"`
	Active        bool   `json:"active"`
	Phone         string `json:"phone,omitempty"`
}
