package models

import (
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Student struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name         string             `bson:"name" json:"name" binding:"required"`
	StudentClass string             `bson:"student_class" json:"student_class"`
	DOB          string             `bson:"dob" json:"dob"`
	Gender       string             `bson:"gender" json:"gender"`
	City         string             `bson:"city" json:"city"`
	Marks        float64            `bson:"marks" json:"marks"`
}

// String renders the full record the way it is injected into prompts.
func (s Student) String() string {
	return fmt.Sprintf("{name: %s, student_class: %s, dob: %s, gender: %s, city: %s, marks: %s}",
		s.Name, s.StudentClass, s.DOB, s.Gender, s.City,
		strconv.FormatFloat(s.Marks, 'f', -1, 64))
}

// NormalizedName is the trimmed, lower-cased name used for matching.
func (s Student) NormalizedName() string {
	return strings.ToLower(strings.TrimSpace(s.Name))
}

// Roster renders every student as "name: record", one per line.
func Roster(students []Student) string {
	lines := make([]string, 0, len(students))
	for _, s := range students {
		lines = append(lines, s.Name+": "+s.String())
	}
	return strings.Join(lines, "\n")
}

type Event struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Title       string             `bson:"title" json:"title" binding:"required"`
	Date        string             `bson:"date" json:"date" binding:"required"`
	Description string             `bson:"description" json:"description"`
}
