package transport

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"inventoflow/internal/analytics"
	"inventoflow/internal/domain"
	"inventoflow/internal/session"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

var pages = []string{
	"landing",
	"login",
	"signup",
	"confirm_signup",
	"forgot_password",
	"reset_password",
	"dashboard",
	"inventory",
	"item_form",
	"sales_report",
}

// Page is the data every template receives.
type Page struct {
	Title   string
	Nav     string
	Profile *domain.UserProfile
	Flash   string
	Error   string
	Content any
}

// Renderer executes the embedded page templates inside the shared layout.
type Renderer struct {
	pages  map[string]*template.Template
	logger *zap.Logger
}

func NewRenderer(logger *zap.Logger) (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pages)), logger: logger}
	for _, name := range pages {
		tmpl, err := template.New("layout.gohtml").Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.gohtml",
			"templates/"+name+".gohtml",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render writes page with status. The session's profile and one-shot flash
// are filled in when the request carries a session.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, name string, page Page) {
	tmpl, ok := r.pages[name]
	if !ok {
		r.logger.Error("Unknown template", zap.String("template", name))
		http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}

	if sess, ok := session.FromContext(req.Context()); ok {
		if sess.IsAuthenticated() {
			profile := sess.Credentials.Profile
			page.Profile = &profile
		}
		if flash := sess.PopFlash(); flash != "" && page.Flash == "" {
			page.Flash = flash
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page); err != nil {
		r.logger.Error("Failed to render template", zap.String("template", name), zap.Error(err))
		http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

var templateFuncs = template.FuncMap{
	"money":      formatMoney,
	"percent":    func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
	"stock":      func(q int) string { return analytics.Classify(q).String() },
	"stockClass": stockClass,
	"json":       toJSON,
	"lower":      strings.ToLower,
}

// formatMoney renders an amount in rupees with thousands separators.
func formatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(c)
	}
	return sign + "₹" + grouped.String() + "." + frac
}

func stockClass(q int) string {
	switch analytics.Classify(q) {
	case analytics.OutOfStock:
		return "out"
	case analytics.LowStock:
		return "low"
	default:
		return "ok"
	}
}

func toJSON(v any) (template.JS, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(data), nil
}
