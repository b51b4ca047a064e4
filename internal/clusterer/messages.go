package clusterer

import (
	"fmt"

	"golang.org/x/text/language"
)

var supportedLocales = []language.Tag{
	language.BrazilianPortuguese,
	language.English,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// messages renders user-facing warnings in the configured locale
type messages struct {
	lang language.Tag
}

func newMessages(locale string) messages {
	_, idx := language.MatchStrings(localeMatcher, locale)
	return messages{lang: supportedLocales[idx]}
}

func (m messages) english() bool {
	return m.lang == language.English
}

func (m messages) droppedKeyword(index int, term string, err error) string {
	if m.english() {
		return fmt.Sprintf("keyword %d (%q) dropped: %v", index, term, err)
	}
	return fmt.Sprintf("palavra-chave %d (%q) descartada: %v", index, term, err)
}

func (m messages) insufficientData(valid, size int) string {
	if m.english() {
		return fmt.Sprintf("insufficient data: %d valid keywords, cluster size is %d", valid, size)
	}
	return fmt.Sprintf("dados insuficientes: %d palavras-chave válidas, tamanho do cluster é %d", valid, size)
}

func (m messages) embeddingFailed(err error) string {
	if m.english() {
		return fmt.Sprintf("embedding generation failed: %v", err)
	}
	return fmt.Sprintf("falha ao gerar embeddings: %v", err)
}

func (m messages) similarityFailed(err error) string {
	if m.english() {
		return fmt.Sprintf("similarity computation failed: %v", err)
	}
	return fmt.Sprintf("falha ao calcular similaridade: %v", err)
}

func (m messages) cancelled(err error) string {
	if m.english() {
		return fmt.Sprintf("run cancelled: %v", err)
	}
	return fmt.Sprintf("execução cancelada: %v", err)
}

func (m messages) thresholdAboveOne(v float64) string {
	if m.english() {
		return fmt.Sprintf("minimum similarity %.2f is above 1; no cosine cluster can be accepted", v)
	}
	return fmt.Sprintf("similaridade mínima %.2f acima de 1; nenhum cluster por cosseno será aceito", v)
}
