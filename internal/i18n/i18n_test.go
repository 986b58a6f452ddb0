package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLocale(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func loadTestManager(t *testing.T) *Manager {
	t.Helper()

	dir := t.TempDir()
	writeLocale(t, dir, "ru.yaml", `
ru:
  errors:
    share_not_found: "Список не найден"
    internal: "Что-то пошло не так"
  share:
    imported: "Список добавлен"
`)
	writeLocale(t, dir, "uz.yaml", `
uz:
  errors:
    share_not_found: "Ro'yxat topilmadi"
`)

	m, err := LoadFromDir(dir, "ru")
	require.NoError(t, err)

	return m
}

func TestTranslate(t *testing.T) {
	m := loadTestManager(t)

	assert.Equal(t, "Список не найден", m.Translate("ru", "errors.share_not_found"))
	assert.Equal(t, "Ro'yxat topilmadi", m.Translate("uz", "errors.share_not_found"))
}

func TestTranslateFallsBackToDefaultLanguage(t *testing.T) {
	m := loadTestManager(t)

	// Key missing in uz resolves through the default language.
	assert.Equal(t, "Список добавлен", m.Translate("uz", "share.imported"))

	// Unknown language resolves entirely through the default.
	assert.Equal(t, "Что-то пошло не так", m.Translate("de", "errors.internal"))
}

func TestTranslateUnknownKeyReturnsKey(t *testing.T) {
	m := loadTestManager(t)

	assert.Equal(t, "errors.nope", m.Translate("ru", "errors.nope"))
	assert.Equal(t, "", m.Translate("ru", ""))
}

func TestTranslatorNormalizesLanguage(t *testing.T) {
	m := loadTestManager(t)

	assert.Equal(t, "uz", m.Translator(" UZ ").Lang())
	assert.Equal(t, "ru", m.Translator("").Lang())
}

func TestLoadFromDirRequiresDefaultLanguage(t *testing.T) {
	dir := t.TempDir()
	writeLocale(t, dir, "uz.yaml", "uz:\n  greeting: salom\n")

	_, err := LoadFromDir(dir, "ru")
	assert.Error(t, err)
}

func TestLoadFromDirRejectsEmptyDir(t *testing.T) {
	_, err := LoadFromDir(t.TempDir(), "ru")
	assert.Error(t, err)
}

func TestLanguages(t *testing.T) {
	m := loadTestManager(t)

	assert.ElementsMatch(t, []string{"ru", "uz"}, m.Languages())
}

func TestNilManagerIsSafe(t *testing.T) {
	var m *Manager

	assert.Equal(t, "errors.internal", m.Translator("ru").T("errors.internal"))
}
