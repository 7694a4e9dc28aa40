// Package analyzer produces LLM descriptions of generated artifacts.
package analyzer

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/reprolab/reproagent/internal/llm"
	"github.com/reprolab/reproagent/internal/observability"
)

const maxPreviewBytes = 8192

// visionSystemPrompt is fixed so the task context cannot bleed into
// purely visual judgments.
const visionSystemPrompt = `You are a meticulous scientific figure reader. Describe only what is visible in the image.`

const codePrompt = `You are reviewing a script produced during a reproduction experiment.
Summarize in 2-3 sentences what the script does and what result it produces.
File: %s

%s`

const tablePrompt = `You are reviewing tabular data produced during a reproduction experiment.
Summarize in 2-3 sentences what the table contains and what it shows.
File: %s

%s`

const imagePrompt = `You are reviewing a figure produced during a reproduction experiment.
Describe in 2-3 sentences what the figure shows and what conclusion it supports.
File: %s`

const diagramPrompt = `You are reviewing a diagram produced during a reproduction experiment.
Summarize in 2-3 sentences what the diagram depicts.
File: %s

%s`

// Analyzer asks the analysis model to describe artifact files.
type Analyzer struct {
	registry   *llm.Registry
	metrics    *observability.Metrics
	logger     *zap.Logger
	workingDir string
}

// New builds an analyzer rooted at the working directory.
func New(registry *llm.Registry, workingDir string, logger *zap.Logger, metrics *observability.Metrics) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{registry: registry, metrics: metrics, logger: logger, workingDir: workingDir}
}

// CanAnalyze reports whether the file extension has an analysis path.
func CanAnalyze(relPath string) bool {
	switch strings.ToLower(filepath.Ext(relPath)) {
	case ".py", ".csv", ".xlsx", ".png", ".jpg", ".jpeg", ".svg":
		return true
	}
	return false
}

// Describe returns an LLM-written description of the artifact.
// Any failure degrades to a plain description stating that analysis was
// unavailable, never an error: the artifact itself is still reported.
func (a *Analyzer) Describe(ctx context.Context, relPath string) string {
	if a == nil || a.registry == nil || !CanAnalyze(relPath) {
		return ""
	}

	req, err := a.buildRequest(relPath)
	if err != nil {
		a.logger.Debug("artifact analysis skipped", zap.String("path", relPath), zap.Error(err))
		return degraded(relPath, "content could not be read")
	}

	provider, route, err := a.registry.Resolve(a.registry.AnalysisModel())
	if err != nil {
		a.logger.Warn("analysis model unavailable", zap.Error(err))
		return degraded(relPath, "no analysis model available")
	}
	req.Model = route.Model
	req.Temperature = route.Temperature
	req.MaxTokens = route.MaxTokens

	resp, err := provider.Chat(ctx, req)
	a.metrics.RecordLLMCall("analysis", err)
	if err != nil {
		a.logger.Warn("artifact analysis failed", zap.String("path", relPath), zap.Error(err))
		return degraded(relPath, "analysis call failed")
	}
	return strings.TrimSpace(resp.Message.Content)
}

// degraded is the description used when analysis cannot run.
func degraded(relPath, cause string) string {
	return fmt.Sprintf("Generated file %s (automatic analysis unavailable: %s)", relPath, cause)
}

func (a *Analyzer) buildRequest(relPath string) (llm.ChatRequest, error) {
	abs := filepath.Join(a.workingDir, relPath)

	switch ext := strings.ToLower(filepath.Ext(relPath)); ext {
	case ".png", ".jpg", ".jpeg":
		data, err := os.ReadFile(abs)
		if err != nil {
			return llm.ChatRequest{}, err
		}
		mime := "image/png"
		if ext != ".png" {
			mime = "image/jpeg"
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
		return llm.ChatRequest{
			SystemPrompt: visionSystemPrompt,
			Messages: []llm.ChatMessage{{
				Role: llm.RoleUser,
				Parts: []llm.ContentPart{
					{Type: "text", Text: fmt.Sprintf(imagePrompt, relPath)},
					{Type: "image_url", ImageURL: &llm.ImageURL{URL: dataURL}},
				},
			}},
		}, nil

	case ".svg":
		preview, err := readPreview(abs)
		if err != nil {
			return llm.ChatRequest{}, err
		}
		return textRequest(fmt.Sprintf(diagramPrompt, relPath, preview)), nil

	case ".py":
		preview, err := readPreview(abs)
		if err != nil {
			return llm.ChatRequest{}, err
		}
		return textRequest(fmt.Sprintf(codePrompt, relPath, preview)), nil

	case ".csv":
		preview, err := readPreview(abs)
		if err != nil {
			return llm.ChatRequest{}, err
		}
		return textRequest(fmt.Sprintf(tablePrompt, relPath, preview)), nil

	case ".xlsx":
		// binary workbook, describe from metadata only
		info, err := os.Stat(abs)
		if err != nil {
			return llm.ChatRequest{}, err
		}
		meta := fmt.Sprintf("(binary spreadsheet, %d bytes, content preview unavailable)", info.Size())
		return textRequest(fmt.Sprintf(tablePrompt, relPath, meta)), nil
	}

	return llm.ChatRequest{}, fmt.Errorf("unsupported extension")
}

func textRequest(prompt string) llm.ChatRequest {
	return llm.ChatRequest{
		Messages: []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}},
	}
}

func readPreview(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) > maxPreviewBytes {
		data = data[:maxPreviewBytes]
	}
	return string(data), nil
}
