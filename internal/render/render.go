package render

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"registrar/internal/assets"
	"registrar/internal/config"
	"registrar/internal/failures"
	"registrar/internal/grading"
	"registrar/internal/logging"
	"registrar/internal/metrics"
	"registrar/internal/records"
)

// Kind selects a document layout.
type Kind string

const (
	KindGradeCard  Kind = "gradecard"
	KindTranscript Kind = "transcript"
)

// ParseKind maps CLI spellings to a Kind.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "gradecard", "grade-card", "gradecards":
		return KindGradeCard, nil
	case "transcript", "transcripts":
		return KindTranscript, nil
	}
	return "", fmt.Errorf("unknown document kind %q", value)
}

func (k Kind) suffix() string {
	if k == KindTranscript {
		return "Transcript"
	}
	return "GradeCard"
}

// Artifact is a rendered document.
type Artifact struct {
	RegNo    string
	Kind     Kind
	Filename string
	Data     []byte
}

// RenderError reports a document that could not be produced.
type RenderError struct {
	RegNo  string
	Kind   Kind
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("render %s for %s: %s", e.Kind, e.RegNo, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RenderError) Unwrap() error { return e.Err }

// ErrorKind implements failures.Classifier.
func (e *RenderError) ErrorKind() string { return failures.KindRendering }

// Options holds the static document text.
type Options struct {
	Institution     string
	Address         string
	Established     string
	NumberPrefix    string
	Level           string
	Medium          string
	ProgramDuration int
	Programs        map[string]string
	PhotoWidth      int
	PhotoHeight     int
	IssueDate       time.Time
	Compress        bool
}

// OptionsFromConfig derives renderer options from configuration.
func OptionsFromConfig(cfg *config.Config, issued time.Time) Options {
	return Options{
		Institution:     cfg.Documents.Institution,
		Address:         cfg.Documents.Address,
		Established:     cfg.Documents.Established,
		NumberPrefix:    cfg.Documents.NumberPrefix,
		Level:           cfg.Documents.Level,
		Medium:          cfg.Documents.Medium,
		ProgramDuration: cfg.Documents.ProgramDuration,
		Programs:        cfg.Documents.Programs,
		PhotoWidth:      cfg.Documents.PhotoWidth,
		PhotoHeight:     cfg.Documents.PhotoHeight,
		IssueDate:       issued,
		Compress:        true,
	}
}

// Renderer produces grade cards and transcripts. It holds no per-document
// state and is safe for concurrent use.
type Renderer struct {
	opts   Options
	table  *grading.Table
	upper  cases.Caser
	logger *slog.Logger
}

// New constructs a renderer. The grade table supplies the legend pages.
func New(opts Options, table *grading.Table, logger *slog.Logger) *Renderer {
	if table == nil {
		table = grading.Default()
	}
	if opts.PhotoWidth <= 0 || opts.PhotoHeight <= 0 {
		opts.PhotoWidth, opts.PhotoHeight = 68, 85
	}
	if opts.IssueDate.IsZero() {
		opts.IssueDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Renderer{
		opts:   opts,
		table:  table,
		upper:  cases.Upper(language.Und),
		logger: logging.NewComponentLogger(logger, "render"),
	}
}

// Render lays out one document. The output depends only on the arguments and
// the renderer options. A nil or undecodable photo renders a placeholder.
func (r *Renderer) Render(kind Kind, identity records.StudentIdentity, summary metrics.TranscriptSummary, photo []byte) (Artifact, error) {
	fail := func(reason string, err error) (Artifact, error) {
		return Artifact{}, &RenderError{RegNo: identity.RegNo, Kind: kind, Reason: reason, Err: err}
	}

	if missing := missingFields(identity); len(missing) > 0 {
		return fail("missing required field(s): "+strings.Join(missing, ", "), nil)
	}
	if len(summary.Semesters) == 0 || summary.CGPA == nil {
		return fail("no computed metrics", nil)
	}

	doc := r.newDocument(kind, identity)
	var err error
	switch kind {
	case KindGradeCard:
		if identity.YearFlag <= 0 {
			return fail("grade card needs a positive year flag", nil)
		}
		year := summary.ForYear(identity.YearFlag)
		if len(year.Semesters) == 0 {
			return fail(fmt.Sprintf("no course rows for year %d", identity.YearFlag), nil)
		}
		err = r.gradeCard(doc, identity, summary, year, photo)
	case KindTranscript:
		err = r.transcript(doc, identity, summary, photo)
	default:
		return fail("unknown document kind", nil)
	}
	if err != nil {
		return fail("layout", err)
	}

	var buf bytes.Buffer
	if err := doc.pdf.Output(&buf); err != nil {
		return fail("write pdf", err)
	}
	r.logger.Debug("document rendered",
		logging.String(logging.FieldRegNo, identity.RegNo),
		logging.String(logging.FieldKind, string(kind)),
		logging.Int("bytes", buf.Len()),
	)
	return Artifact{
		RegNo:    identity.RegNo,
		Kind:     kind,
		Filename: Filename(kind, identity),
		Data:     buf.Bytes(),
	}, nil
}

func missingFields(identity records.StudentIdentity) []string {
	var missing []string
	if strings.TrimSpace(identity.RegNo) == "" {
		missing = append(missing, "registration number")
	}
	if strings.TrimSpace(identity.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(identity.Program) == "" {
		missing = append(missing, "program")
	}
	return missing
}

// Filename returns <REGN_NO>_<Name_With_Underscores>_<Kind>.pdf.
func Filename(kind Kind, identity records.StudentIdentity) string {
	name := strings.Join(strings.Fields(identity.Name), "_")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '.', '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, name)
	if name == "" {
		name = "Unknown"
	}
	regNo := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '-'
		}
		return r
	}, strings.TrimSpace(identity.RegNo))
	return fmt.Sprintf("%s_%s_%s.pdf", regNo, name, kind.suffix())
}

// DocumentNumber derives the printed document number from the registration
// number: <prefix>/<characters 3-4>/<level>/<last three characters>.
func DocumentNumber(prefix, level, regNo string) string {
	runes := []rune(strings.TrimSpace(regNo))
	if len(runes) < 4 {
		return strings.TrimSpace(regNo)
	}
	batch := string(runes[2:4])
	tail := runes
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	parts := []string{batch, level, string(tail)}
	if prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func (r *Renderer) programName(code string) string {
	if name, ok := r.opts.Programs[strings.TrimSpace(code)]; ok && name != "" {
		return name
	}
	return code
}

// document wraps an fpdf instance with the translator for core fonts.
type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (r *Renderer) newDocument(kind Kind, identity records.StudentIdentity) *document {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(r.opts.Compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(r.opts.IssueDate)
	pdf.SetModificationDate(r.opts.IssueDate)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	title := fmt.Sprintf("%s %s", identity.RegNo, kind.suffix())
	pdf.SetTitle(tr(title), false)
	pdf.SetAuthor(tr(r.opts.Institution), false)
	pdf.SetCreator("registrar", false)
	pdf.SetProducer("registrar", false)
	return &document{pdf: pdf, tr: tr}
}

// text draws s with its baseline at (x, y) measured from the top-left corner.
func (d *document) text(x, y float64, s string) {
	d.pdf.Text(x, y, d.tr(s))
}

// centered draws s centred on the page width.
func (d *document) centered(y float64, s string) {
	w := d.pdf.GetStringWidth(d.tr(s))
	d.pdf.Text((pageWidth-w)/2, y, d.tr(s))
}

// fit truncates s with an ellipsis so it is at most width points wide.
func (d *document) fit(s string, width float64) string {
	if d.pdf.GetStringWidth(d.tr(s)) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := strings.TrimSpace(string(runes)) + "..."
		if d.pdf.GetStringWidth(d.tr(candidate)) <= width {
			return candidate
		}
	}
	return ""
}

// photo embeds data at the given box, substituting a placeholder for
// missing or unreadable images.
func (r *Renderer) photo(d *document, data []byte, x, y, w, h float64) {
	imageType := detectImageType(data)
	if imageType == "" {
		data = assets.Placeholder(r.opts.PhotoWidth, r.opts.PhotoHeight)
		imageType = "JPG"
	}
	opts := fpdf.ImageOptions{ImageType: imageType}
	d.pdf.RegisterImageOptionsReader("photo", opts, bytes.NewReader(data))
	d.pdf.ImageOptions("photo", x, y, w, h, false, opts, 0, "")
	d.pdf.SetDrawColor(120, 120, 120)
	d.pdf.SetLineWidth(0.5)
	d.pdf.Rect(x, y, w, h, "D")
}

func detectImageType(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return ""
	}
	switch format {
	case "jpeg":
		return "JPG"
	case "png":
		return "PNG"
	}
	return ""
}

// errOf surfaces fpdf's sticky error.
func errOf(d *document) error {
	if d.pdf.Err() {
		return d.pdf.Error()
	}
	return nil
}
