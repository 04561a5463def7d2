package upload

import (
	"bufio"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cppla/socialbbs/middleware"
	"github.com/cppla/socialbbs/utils"
)

// sniffLen matches the number of bytes mimetype inspects by default.
const sniffLen = 3072

// maxDrainBytes caps how much of a rejected body is read and discarded so the connection can be
// reused for the response.
const maxDrainBytes = 16 << 20

// Attempt is one file part as declared by the client.
type Attempt struct {
	Field        string
	OriginalName string
	MimeType     string
}

// FieldSpec names a file field and how many files it takes.
type FieldSpec struct {
	Name     string
	MaxCount int
}

// Recorder is told about every stored file of a request that was accepted as a whole.
type Recorder interface {
	Record(ctx context.Context, f StoredFile) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, f StoredFile) error

func (fn RecorderFunc) Record(ctx context.Context, f StoredFile) error { return fn(ctx, f) }

// Result is what a request yielded once every part was accepted.
type Result struct {
	Files map[string][]StoredFile
	Form  url.Values
}

// Gatekeeper validates multipart uploads and persists accepted files into a Store.
type Gatekeeper struct {
	store    Store
	policy   Policy
	log      *zap.Logger
	metrics  *Metrics
	recorder Recorder
	tracer   trace.Tracer
}

// Option configures a Gatekeeper.
type Option func(*Gatekeeper)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gatekeeper) {
		if l != nil {
			g.log = l
		}
	}
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *Metrics) Option {
	return func(g *Gatekeeper) { g.metrics = m }
}

// WithRecorder registers a hook called for each file once the whole request is accepted.
func WithRecorder(r Recorder) Option {
	return func(g *Gatekeeper) { g.recorder = r }
}

// New builds a Gatekeeper. Zero policy fields fall back to DefaultPolicy values.
func New(store Store, policy Policy, opts ...Option) *Gatekeeper {
	g := &Gatekeeper{
		store:  store,
		policy: policy.normalized(),
		log:    zap.NewNop(),
		tracer: otel.Tracer("github.com/cppla/socialbbs/upload"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy returns the effective policy.
func (g *Gatekeeper) Policy() Policy { return g.policy }

// Store returns the backing store.
func (g *Gatekeeper) Store() Store { return g.store }

// Single accepts up to Policy.MaxFileCount files under field.
func (g *Gatekeeper) Single(field string) gin.HandlerFunc {
	return g.handler([]FieldSpec{{Name: field, MaxCount: g.policy.MaxFileCount}})
}

// Array accepts up to maxCount files under field.
func (g *Gatekeeper) Array(field string, maxCount int) gin.HandlerFunc {
	return g.handler([]FieldSpec{{Name: field, MaxCount: maxCount}})
}

// Fields accepts files on several named fields, each with its own count.
func (g *Gatekeeper) Fields(specs ...FieldSpec) gin.HandlerFunc {
	return g.handler(specs)
}

// None accepts plain form fields only. Any file part is an unexpected field.
func (g *Gatekeeper) None() gin.HandlerFunc {
	return g.handler(nil)
}

func (g *Gatekeeper) handler(specs []FieldSpec) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := g.Process(c.Request.Context(), c.Request, specs)
		if err != nil {
			g.reject(c, err)
			return
		}
		c.Set(ContextFilesKey, res.Files)
		c.Set(ContextFormKey, res.Form)
		c.Next()
	}
}

func (g *Gatekeeper) reject(c *gin.Context, err error) {
	ue := AsError(err)
	g.metrics.observeRejected(ue)

	fields := []zap.Field{
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("path", c.Request.URL.Path),
		zap.String("code", string(ue.Code)),
		zap.String("kind", ue.Kind().String()),
		zap.String("field", ue.Field),
	}
	if ue.Err != nil {
		fields = append(fields, zap.Error(ue.Err))
	}
	if ue.Kind() == KindStorage {
		g.log.Error("upload storage failed", fields...)
	} else {
		g.log.Info("upload rejected", fields...)
	}

	drain(c.Request.Body)
	utils.Error(c, ue.Status(), ue.PublicMessage())
	c.Abort()
}

// drain discards the rest of a rejected body so net/http can keep the connection open for the
// response.
func drain(body io.Reader) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainBytes))
}

// Process streams the multipart body of r. Every file part is checked against specs and the
// policy, then stored. On any failure the files stored so far are removed and an *Error is
// returned. Requests that are not multipart yield an empty Result.
func (g *Gatekeeper) Process(ctx context.Context, r *http.Request, specs []FieldSpec) (*Result, error) {
	res := &Result{Files: map[string][]StoredFile{}, Form: url.Values{}}

	mr, err := r.MultipartReader()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return res, nil
		}
		return nil, errTransport(CodeMalformed, "", err)
	}

	if err := g.readParts(ctx, mr, specs, res); err != nil {
		g.rollback(ctx, res)
		return nil, err
	}
	g.record(ctx, res)
	return res, nil
}

func (g *Gatekeeper) readParts(ctx context.Context, mr *multipart.Reader, specs []FieldSpec, res *Result) error {
	counts := make(map[string]int, len(specs))
	var parts, fieldCount int

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errTransport(CodeMalformed, "", err)
		}

		parts++
		if parts > maxParts {
			part.Close()
			return errTransport(CodePartCount, "", nil)
		}

		field := part.FormName()
		if part.FileName() == "" {
			err := g.readField(part, field, &fieldCount, res.Form)
			part.Close()
			if err != nil {
				return err
			}
			continue
		}

		spec, ok := lookupSpec(specs, field)
		if !ok {
			part.Close()
			return errUnexpectedField(field)
		}
		if counts[field] >= spec.MaxCount {
			part.Close()
			return errTooManyFiles(spec.MaxCount, field)
		}
		counts[field]++

		attempt := Attempt{
			Field:        field,
			OriginalName: part.FileName(),
			MimeType:     part.Header.Get("Content-Type"),
		}
		f, err := g.Accept(ctx, attempt, part)
		part.Close()
		if err != nil {
			return err
		}
		res.Files[field] = append(res.Files[field], f)
	}
}

func (g *Gatekeeper) readField(part *multipart.Part, field string, fieldCount *int, form url.Values) error {
	if field == "" {
		return errTransport(CodeMissingField, "", nil)
	}
	if len(field) > maxFieldNameBytes {
		return errTransport(CodeFieldKey, field, nil)
	}
	*fieldCount++
	if *fieldCount > maxFields {
		return errTransport(CodeFieldCount, field, nil)
	}
	value, err := io.ReadAll(io.LimitReader(part, maxFieldValueBytes+1))
	if err != nil {
		return errTransport(CodeMalformed, field, err)
	}
	if len(value) > maxFieldValueBytes {
		return errTransport(CodeFieldValue, field, nil)
	}
	form.Add(field, string(value))
	return nil
}

// Accept validates one file stream and stores it. The declared type and the name are checked
// before anything is read; size is enforced while the bytes are copied to the store.
// The Recorder is not called here, Process does that once every part is accepted.
func (g *Gatekeeper) Accept(ctx context.Context, a Attempt, body io.Reader) (StoredFile, error) {
	if !g.policy.Allows(a.MimeType) {
		return StoredFile{}, errInvalidType(g.policy, a.Field)
	}
	ext := Extension(a.OriginalName)
	if !validExtension(ext) {
		return StoredFile{}, errFileName(ext, a.Field)
	}

	body = partReader{r: body, field: a.Field}
	var src io.Reader = newLimitedPart(body, g.policy.MaxFileSizeBytes, errFileTooLarge(g.policy, a.Field))
	if g.policy.VerifyContent {
		br := bufio.NewReaderSize(src, sniffLen)
		head, err := br.Peek(sniffLen)
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return StoredFile{}, AsError(err)
		}
		if detected := mimetype.Detect(head); !g.policy.Allows(detected.String()) {
			return StoredFile{}, errInvalidType(g.policy, a.Field)
		}
		src = br
	}

	ctx, span := g.tracer.Start(ctx, "upload.store", trace.WithAttributes(
		attribute.String("upload.field", a.Field),
		attribute.String("upload.mime_type", a.MimeType),
	))
	defer span.End()

	f, err := g.store.Put(ctx, src, ext)
	if err != nil {
		var ue *Error
		if !errors.As(err, &ue) {
			ue = errStorage(a.Field, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(ue.Code))
		return StoredFile{}, ue
	}
	f.Field = a.Field
	f.OriginalName = a.OriginalName
	f.MimeType = normalizeMimeType(a.MimeType)
	span.SetAttributes(attribute.String("upload.name", f.Name), attribute.Int64("upload.size", f.Size))

	g.metrics.observeAccepted(f)
	g.log.Debug("upload stored",
		zap.String("field", f.Field),
		zap.String("name", f.Name),
		zap.Int64("size", f.Size))
	return f, nil
}

// record hands every file of an accepted request to the Recorder. Failures are logged only.
func (g *Gatekeeper) record(ctx context.Context, res *Result) {
	if g.recorder == nil {
		return
	}
	for _, files := range res.Files {
		for _, f := range files {
			if err := g.recorder.Record(ctx, f); err != nil {
				g.log.Warn("record upload failed", zap.String("name", f.Name), zap.Error(err))
			}
		}
	}
}

// rollback deletes files stored earlier in a request that ended up rejected.
func (g *Gatekeeper) rollback(ctx context.Context, res *Result) {
	var errs error
	for _, files := range res.Files {
		for _, f := range files {
			if err := g.store.Delete(ctx, f.Name); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	if errs != nil {
		g.log.Error("rollback of rejected upload incomplete", zap.Error(errs))
	}
	res.Files = map[string][]StoredFile{}
}

func lookupSpec(specs []FieldSpec, field string) (FieldSpec, bool) {
	for _, s := range specs {
		if s.Name == field {
			return s, true
		}
	}
	return FieldSpec{}, false
}
