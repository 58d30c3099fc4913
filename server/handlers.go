package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/xhad/campus/pkg/agent"
	"github.com/xhad/campus/pkg/auth"
	"github.com/xhad/campus/pkg/document"
	"github.com/xhad/campus/pkg/roster"
)

const internalError = "Internal server error."

var statusByKind = map[agent.Kind]int{
	agent.KindBadRequest:            http.StatusBadRequest,
	agent.KindFetch:                 http.StatusBadGateway,
	agent.KindNoContent:             http.StatusUnprocessableEntity,
	agent.KindTranscriptUnavailable: http.StatusNotFound,
	agent.KindUnsupportedFormat:     http.StatusUnsupportedMediaType,
	agent.KindGeneration:            http.StatusInternalServerError,
	agent.KindInternal:              http.StatusInternalServerError,
}

func respond(c *gin.Context, response any) {
	c.JSON(http.StatusOK, gin.H{"response": response})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// failWith writes the user-facing part of an agent error. Anything else is
// logged and hidden.
func failWith(c *gin.Context, err error) {
	var agentErr *agent.Error
	if errors.As(err, &agentErr) {
		status, ok := statusByKind[agentErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		fail(c, status, agentErr.Message)
		return
	}
	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	fail(c, http.StatusInternalServerError, internalError)
}

func (s *Server) state(c *gin.Context) *agent.SessionState {
	return s.deps.Sessions.Get(auth.SessionKey(c))
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

func (s *Server) chatbot(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		fail(c, http.StatusBadRequest, "Message is required.")
		return
	}

	answer, err := s.deps.Agent.Run(c.Request.Context(), s.state(c), req.Message)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, answer.Payload())
}

func (s *Server) ask(c *gin.Context) {
	query := c.Query("query")
	if strings.TrimSpace(query) == "" {
		fail(c, http.StatusBadRequest, "Query is required.")
		return
	}

	answer, err := s.deps.Agent.Ask(c.Request.Context(), s.state(c), query)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, answer.Payload())
}

type urlRequest struct {
	URL string `json:"url" binding:"required"`
}

func (s *Server) analyzeURL(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "URL is required.")
		return
	}
	url := strings.TrimRight(strings.TrimSpace(req.URL), ".")

	answer, err := s.deps.Agent.IngestURL(c.Request.Context(), s.state(c), url)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, answer.Payload())
}

type videoRequest struct {
	VideoLink string `json:"video_link" binding:"required"`
}

func (s *Server) processVideo(c *gin.Context) {
	var req videoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid YouTube URL.")
		return
	}

	answer, err := s.deps.Agent.IngestVideo(c.Request.Context(), s.state(c), strings.TrimSpace(req.VideoLink))
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, answer.Payload())
}

func (s *Server) uploadPDF(c *gin.Context) {
	filename, data, ok := s.readUpload(c, document.PDF)
	if !ok {
		return
	}

	answer, err := s.deps.Agent.IngestDocument(c.Request.Context(), s.state(c), filename, data)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, answer.Payload())
}

func (s *Server) uploadExcel(c *gin.Context) {
	filename, data, ok := s.readUpload(c, document.XLSX)
	if !ok {
		return
	}

	n, err := roster.Import(c.Request.Context(), s.deps.Students, filename, data)
	if err != nil {
		var unsupported *document.UnsupportedFormatError
		if errors.As(err, &unsupported) {
			fail(c, http.StatusUnsupportedMediaType, "Invalid file type.")
			return
		}
		log.Warn().Err(err).Str("file", filename).Int("imported", n).Msg("failed to import roster")
		fail(c, http.StatusBadRequest, "Could not import students.")
		return
	}

	respond(c, gin.H{
		"message":  "Student details added to the database successfully!",
		"imported": n,
	})
}

// readUpload reads the multipart "file" field. The extension is checked
// here so a wrong file is rejected before its body is read in full.
func (s *Server) readUpload(c *gin.Context, format document.Format) (string, []byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "A file is required.")
		return "", nil, false
	}
	if !strings.EqualFold(extension(header.Filename), format.Ext) {
		fail(c, http.StatusUnsupportedMediaType, "Invalid file type.")
		return "", nil, false
	}

	f, err := header.Open()
	if err != nil {
		log.Error().Err(err).Str("file", header.Filename).Msg("failed to open upload")
		fail(c, http.StatusBadRequest, "Could not read the file.")
		return "", nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, "Could not read the file.")
		return "", nil, false
	}
	return header.Filename, data, true
}

func extension(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		return filename[i:]
	}
	return ""
}
