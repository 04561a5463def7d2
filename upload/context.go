package upload

import (
	"net/url"

	"github.com/gin-gonic/gin"
)

const (
	// ContextFilesKey holds map[string][]StoredFile keyed by form field.
	ContextFilesKey = "upload_files"
	// ContextFormKey holds the url.Values collected from non-file parts.
	ContextFormKey = "upload_form"
)

// Files returns the files accepted for field.
func Files(c *gin.Context, field string) []StoredFile {
	return filesOf(c)[field]
}

// File returns the first file accepted for field.
func File(c *gin.Context, field string) (StoredFile, bool) {
	files := Files(c, field)
	if len(files) == 0 {
		return StoredFile{}, false
	}
	return files[0], true
}

// AllFiles returns every file accepted for the request.
func AllFiles(c *gin.Context) []StoredFile {
	var all []StoredFile
	for _, files := range filesOf(c) {
		all = append(all, files...)
	}
	return all
}

// FormValue returns a plain form field. Fields gathered by the Gatekeeper win; for bodies it
// passed through untouched the regular gin form lookup is used.
func FormValue(c *gin.Context, key string) string {
	v, _ := LookupFormValue(c, key)
	return v
}

// LookupFormValue is FormValue that also reports whether the field was sent at all.
func LookupFormValue(c *gin.Context, key string) (string, bool) {
	if v, ok := c.Get(ContextFormKey); ok {
		if form, ok := v.(url.Values); ok {
			if vals, ok := form[key]; ok && len(vals) > 0 {
				return vals[0], true
			}
		}
	}
	return c.GetPostForm(key)
}

func filesOf(c *gin.Context) map[string][]StoredFile {
	v, ok := c.Get(ContextFilesKey)
	if !ok {
		return nil
	}
	files, _ := v.(map[string][]StoredFile)
	return files
}
