package server

import (
	"errors"
	"net/http"
	"strconv"

	"comfynodes/nodes"

	"github.com/gin-gonic/gin"
)

type interpolateRequest struct {
	Template  string          `json:"template"`
	Variables []variableInput `json:"variables" binding:"required,dive"`
}

type variableInput struct {
	Name  string             `json:"name" binding:"required"`
	Value string             `json:"value"`
	Type  nodes.VariableType `json:"type"`
}

type attributesRequest struct {
	Attributes      []nodes.Attribute `json:"attributes"`
	LowWeightMax    *float64          `json:"lowWeightMax"`
	MediumWeightMax *float64          `json:"mediumWeightMax"`
	Separator       *string           `json:"separator"`
}

type combineRequest struct {
	StoredPrompts string                        `json:"storedPrompts"`
	Inputs        map[string]nodes.Conditioning `json:"inputs"`
}

func errorJSON(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// handleLoras lists the LoRA files in the configured directory.
func (s *Server) handleLoras(c *gin.Context) {
	loras, err := s.loader.Available()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loras": loras})
}

// handleTriggers returns the top trigger words of one LoRA.
func (s *Server) handleTriggers(c *gin.Context) {
	percent := s.config.Loras.DefaultPercent
	if p := c.Query("percent"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, errors.New("percent must be an integer"))
			return
		}
		percent = v
	}

	weight := 1.0
	if w := c.Query("weight"); w != "" {
		v, err := strconv.ParseFloat(w, 64)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, errors.New("weight must be a number"))
			return
		}
		weight = v
	}

	res, err := s.loader.TriggerWords(c.Param("name"), percent, weight)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleMetadata returns the trainer summary of one LoRA.
func (s *Server) handleMetadata(c *gin.Context) {
	path, err := s.loader.Resolve(c.Param("name"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	summary, err := s.extractor.Summarize(path)
	if err != nil {
		errorJSON(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleInterpolate(c *gin.Context) {
	var req interpolateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	vars := make([]nodes.Variable, 0, len(req.Variables))
	for _, v := range req.Variables {
		vars = append(vars, nodes.NewVariable(v.Name, v.Value, v.Type))
	}

	c.JSON(http.StatusOK, gin.H{
		"text":      nodes.InterpolateAll(vars, req.Template),
		"variables": vars,
	})
}

func (s *Server) handleAttributes(c *gin.Context) {
	var req attributesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	opts := nodes.FormatOptions{
		LowWeightMax:    s.config.Attributes.LowWeightMax,
		MediumWeightMax: s.config.Attributes.MediumWeightMax,
		Separator:       s.config.Attributes.Separator,
	}
	if req.LowWeightMax != nil {
		opts.LowWeightMax = *req.LowWeightMax
	}
	if req.MediumWeightMax != nil {
		opts.MediumWeightMax = *req.MediumWeightMax
	}
	if req.Separator != nil {
		opts.Separator = *req.Separator
	}

	text, kept, err := nodes.FormatAttributes(req.Attributes, opts)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text, "attributes": kept})
}

func (s *Server) handleCombine(c *gin.Context) {
	var req combineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conditioning": nodes.CombinePrompts(req.StoredPrompts, req.Inputs)})
}
