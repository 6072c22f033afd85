package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

// PromptDelimiter separa el multiplicador del template en el archivo de prompt.
const PromptDelimiter = "---PROMPT---"

// DefaultPrompt es el prompt mínimo usado cuando el archivo falta o está vacío.
const DefaultPrompt = `You are trading in a timed token competition against USDM.
Decide whether to buy or sell and what percentage (0-100) of the relevant balance to trade.
Reply only with JSON: {"action": "buy" | "sell", "percentage": number}.

{{.Summary}}`

// Prompt es el resultado validado del archivo de prompt.
type Prompt struct {
	Multiplier float64 // en (0, 1]; se aplica sobre el monto calculado
	Template   string
}

// DefaultPromptConfig devuelve el prompt por defecto con multiplicador 1.0.
func DefaultPromptConfig() Prompt {
	return Prompt{Multiplier: 1.0, Template: DefaultPrompt}
}

// LoadPrompt lee el archivo de prompt. Si no existe devuelve los defaults.
// Cualquier otro error de lectura se propaga.
func LoadPrompt(path string) (Prompt, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("prompt file not found, using built-in prompt", "path", path)
		return DefaultPromptConfig(), nil
	}
	if err != nil {
		return Prompt{}, fmt.Errorf("config.LoadPrompt: read %q: %w", path, err)
	}
	return ParsePrompt(string(data)), nil
}

// ParsePrompt interpreta "<multiplicador>\n---PROMPT---\n<template>".
//
// Sin delimitador todo el contenido es el template. Un multiplicador no
// numérico o fuera de (0, 1] cae a 1.0; un template vacío cae a DefaultPrompt.
func ParsePrompt(content string) Prompt {
	p := DefaultPromptConfig()

	head, body, found := strings.Cut(content, PromptDelimiter)
	if !found {
		body = content
		head = ""
	}

	if h := strings.TrimSpace(head); h != "" {
		m, err := strconv.ParseFloat(h, 64)
		switch {
		case err != nil || math.IsNaN(m) || math.IsInf(m, 0):
			slog.Warn("prompt: invalid multiplier, using 1.0", "value", h)
		case m <= 0 || m > 1:
			slog.Warn("prompt: multiplier out of (0, 1], using 1.0", "value", m)
		default:
			p.Multiplier = m
		}
	}

	if b := strings.TrimSpace(body); b != "" {
		p.Template = b
	}
	return p
}
