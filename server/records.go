package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/xhad/campus/internal/models"
	"github.com/xhad/campus/pkg/records"
)

func (s *Server) listStudents(c *gin.Context) {
	students, err := s.deps.Students.All(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list students")
		fail(c, http.StatusInternalServerError, internalError)
		return
	}
	respond(c, students)
}

func (s *Server) addStudent(c *gin.Context) {
	var student models.Student
	if err := c.ShouldBindJSON(&student); err != nil {
		fail(c, http.StatusBadRequest, "Invalid student record.")
		return
	}

	if err := s.deps.Students.Add(c.Request.Context(), student); err != nil {
		log.Error().Err(err).Msg("failed to add student")
		fail(c, http.StatusInternalServerError, internalError)
		return
	}
	respond(c, gin.H{"message": "Student added successfully"})
}

func (s *Server) listEvents(c *gin.Context) {
	events, err := s.deps.Events.All(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list events")
		fail(c, http.StatusInternalServerError, internalError)
		return
	}
	respond(c, events)
}

func (s *Server) addEvent(c *gin.Context) {
	var event models.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		fail(c, http.StatusBadRequest, "Invalid event.")
		return
	}
	if _, err := time.Parse(time.DateOnly, event.Date); err != nil {
		fail(c, http.StatusBadRequest, "Event date must be YYYY-MM-DD.")
		return
	}

	id, err := s.deps.Events.Add(c.Request.Context(), event)
	if err != nil {
		log.Error().Err(err).Msg("failed to add event")
		fail(c, http.StatusInternalServerError, internalError)
		return
	}
	respond(c, gin.H{"message": "Event added successfully", "id": id})
}

func (s *Server) deleteEvent(c *gin.Context) {
	err := s.deps.Events.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		respond(c, gin.H{"message": "Event deleted successfully"})
	case errors.Is(err, records.ErrInvalidID):
		fail(c, http.StatusBadRequest, "Invalid event id.")
	case errors.Is(err, records.ErrNotFound):
		fail(c, http.StatusNotFound, "Event not found.")
	default:
		log.Error().Err(err).Msg("failed to delete event")
		fail(c, http.StatusInternalServerError, internalError)
	}
}
