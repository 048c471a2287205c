// Package views generates the browse, read, edit, add, delete and copy
// pages of registered models and the routes that serve them.
package views

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bread/internal/core/apperror"
	appctx "bread/internal/core/context"
	"bread/internal/domain"
	"bread/internal/domain/audit"
	"bread/internal/domain/auth"
	"bread/internal/domain/filter"
	"bread/internal/domain/table"
	"bread/internal/infrastructure/http/v1/middleware"
	"bread/internal/infrastructure/http/v1/pages"
	"bread/internal/metadata"
	"bread/pkg/logger"
)

// Action names a view of a model.
type Action string

const (
	ActionBrowse Action = "browse"
	ActionRead   Action = "read"
	ActionEdit   Action = "edit"
	ActionAdd    Action = "add"
	ActionDelete Action = "delete"
	ActionCopy   Action = "copy"
)

// permissionVerbs maps the standard actions to their permission verb.
var permissionVerbs = map[Action]string{
	ActionBrowse: "view",
	ActionRead:   "view",
	ActionEdit:   "change",
	ActionAdd:    "add",
	ActionDelete: "delete",
	ActionCopy:   "add",
}

// Registration is one routed view of a model.
type Registration struct {
	// Name is the canonical URL name "<app>.<model>.<action>".
	Name       string
	Action     Action
	Model      *metadata.Model
	Path       string
	Methods    []string
	Permission string
	Handler    gin.HandlerFunc

	// permissionFor replaces Permission for requests that need another one.
	permissionFor func(c *gin.Context) string
}

// Extension is an additional named view of a model.
type Extension struct {
	Name string
	// Path is relative to the model prefix; empty uses "/<name>".
	Path string
	// Methods defaults to GET.
	Methods []string
	// Permission defaults to the model's view permission.
	Permission string
	Handler    func(v *ModelViews) gin.HandlerFunc
}

// Overrides customizes the views of one model. The zero value gives the
// defaults: every field, every action, default bulk actions.
type Overrides struct {
	// Prefix is the URL prefix; empty uses "/<app>/<model>".
	Prefix string
	// Columns of the browse table: paths, metadata.AllFields or table.Column.
	Columns []any
	// ReadFields lists the paths shown on the read view.
	ReadFields []string
	// FormFields lists the fields of the add and edit forms.
	FormFields []string
	// Filter lays out the filter panel; nil shows none.
	Filter *filter.PanelConfig
	// Permissions replaces the permission of single actions.
	Permissions map[Action]string
	// BulkActions replaces the default bulk actions; an empty non-nil slice disables them.
	BulkActions []BulkAction
	Extra       []Extension
	// ItemsPerPage is the default page size of the browse view.
	ItemsPerPage int
	// RememberState restores the last browse parameters when the listing is
	// opened without any.
	RememberState bool
	// History shows the audit trail on the read view.
	History bool
}

// Config holds what every view needs.
type Config struct {
	Models   *domain.ModelService
	Renderer *pages.Renderer
	// Audit is optional; without it the read view shows no history.
	Audit               audit.Sink
	ItemsPerPageOptions []int
	DefaultItemsPerPage int
	Logger              *logger.Logger
}

// URLSet holds the registrations of one model.
type URLSet struct {
	Model  *metadata.Model
	Prefix string

	regs  map[Action]*Registration
	order []Action
}

// Registration returns the view registered for action.
func (u *URLSet) Registration(action Action) (Registration, bool) {
	r, ok := u.regs[action]
	if !ok {
		return Registration{}, false
	}
	return *r, true
}

// Name is the canonical URL name of action.
func (u *URLSet) Name(action Action) string {
	return urlName(u.Model, action)
}

// URL returns the path of action, filling ":id" with recordID.
func (u *URLSet) URL(action Action, recordID ...string) string {
	r, ok := u.regs[action]
	if !ok {
		return ""
	}
	return fillPath(r.Path, recordID)
}

func urlName(m *metadata.Model, action Action) string {
	return m.App + "." + m.Name + "." + string(action)
}

func fillPath(path string, args []string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if strings.HasPrefix(s, ":") && len(args) > 0 {
			segments[i] = args[0]
			args = args[1:]
		}
	}
	return strings.Join(segments, "/")
}

// Builder collects model registrations at startup.
type Builder struct {
	cfg  Config
	sets []*URLSet
	errs []error
}

// NewBuilder creates a builder for cfg.
func NewBuilder(cfg Config) *Builder {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.DefaultItemsPerPage == 0 {
		cfg.DefaultItemsPerPage = 25
	}
	if len(cfg.ItemsPerPageOptions) == 0 {
		cfg.ItemsPerPageOptions = []int{25, 50, 100, -1}
	}
	return &Builder{cfg: cfg}
}

// RegisterCRUD registers the six standard views and the extensions of a
// model. Problems are reported by Build.
func (b *Builder) RegisterCRUD(modelKey string, o Overrides) *URLSet {
	v, err := newModelViews(b.cfg, modelKey, o)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("register %s: %w", modelKey, err))
		return &URLSet{regs: map[Action]*Registration{}}
	}
	b.sets = append(b.sets, v.URLs)
	return v.URLs
}

// Build checks the registrations and returns the immutable site.
func (b *Builder) Build() (*Site, error) {
	s := &Site{
		renderer: b.cfg.Renderer,
		byName:   make(map[string]Registration),
		byModel:  make(map[string]*URLSet),
	}
	errs := append([]error(nil), b.errs...)
	paths := make(map[string]string)

	for _, set := range b.sets {
		if _, dup := s.byModel[set.Model.Key()]; dup {
			errs = append(errs, apperror.NewModelConfiguration(fmt.Sprintf("model %s is registered twice", set.Model.Key())))
			continue
		}
		s.byModel[set.Model.Key()] = set
		s.sets = append(s.sets, set)
		for _, action := range set.order {
			r := *set.regs[action]
			if _, dup := s.byName[r.Name]; dup {
				errs = append(errs, apperror.NewModelConfiguration(fmt.Sprintf("URL name %s is registered twice", r.Name)))
				continue
			}
			if other, dup := paths[r.Path]; dup {
				errs = append(errs, apperror.NewModelConfiguration(fmt.Sprintf("path %s of %s is already used by %s", r.Path, r.Name, other)))
				continue
			}
			paths[r.Path] = r.Name
			s.byName[r.Name] = r
			s.regs = append(s.regs, r)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// Site is the set of routed model views. It does not change after Build.
type Site struct {
	renderer *pages.Renderer
	regs     []Registration
	byName   map[string]Registration
	sets     []*URLSet
	byModel  map[string]*URLSet
}

// Registrations lists every view in registration order.
func (s *Site) Registrations() []Registration {
	return s.regs
}

// URLs returns the URL set of a model.
func (s *Site) URLs(modelKey string) (*URLSet, bool) {
	set, ok := s.byModel[modelKey]
	return set, ok
}

// Reverse returns the path registered under name with its parameters filled.
func (s *Site) Reverse(name string, args ...string) (string, error) {
	r, ok := s.byName[name]
	if !ok {
		return "", apperror.NewNotFound("URL", name)
	}
	return fillPath(r.Path, args), nil
}

// Mount adds every view to the router behind its permission check.
func (s *Site) Mount(r gin.IRoutes) {
	for _, reg := range s.regs {
		check := middleware.RequirePermission(reg.Permission)
		if reg.permissionFor != nil {
			permissionFor := reg.permissionFor
			check = func(c *gin.Context) {
				middleware.RequirePermission(permissionFor(c))(c)
			}
		}
		for _, method := range reg.Methods {
			r.Handle(method, reg.Path, check, reg.Handler)
		}
	}
}

// Nav lists the browse views the current user may open.
func (s *Site) Nav(c *gin.Context) []pages.NavLink {
	user := appctx.GetUser(c.Request.Context())
	var links []pages.NavLink
	for _, set := range s.sets {
		r, ok := set.regs[ActionBrowse]
		if !ok || !user.HasPermission(r.Permission) {
			continue
		}
		links = append(links, pages.NavLink{
			Label:  set.Model.LabelPlural,
			URL:    r.Path,
			Active: strings.HasPrefix(c.Request.URL.Path, set.Prefix+"/"),
		})
	}
	return links
}

// Index renders the start page: the browsable models grouped by app.
func (s *Site) Index(c *gin.Context) {
	user := appctx.GetUser(c.Request.Context())
	var content pages.IndexContent
	for _, set := range s.sets {
		r, ok := set.regs[ActionBrowse]
		if !ok || !user.HasPermission(r.Permission) {
			continue
		}
		title := metadata.Humanize(set.Model.App)
		if n := len(content.Sections); n == 0 || content.Sections[n-1].Title != title {
			content.Sections = append(content.Sections, pages.Section{Title: title})
		}
		section := &content.Sections[len(content.Sections)-1]
		section.Links = append(section.Links, pages.NavLink{Label: set.Model.LabelPlural, URL: r.Path})
	}
	s.renderer.HTML(c, http.StatusOK, "index", "Home", content)
}

// ModelViews serves the views of one model.
type ModelViews struct {
	cfg   Config
	Model *metadata.Model
	URLs  *URLSet

	Columns     []table.Column
	readFields  []string
	formFields  []string
	panel       *filter.PanelConfig
	bulkActions []BulkAction
	perPage     int
	remember    bool
	history     bool
	log         *logger.Logger
}

func newModelViews(cfg Config, modelKey string, o Overrides) (*ModelViews, error) {
	reg := cfg.Models.Registry()
	m, err := reg.Model(modelKey)
	if err != nil {
		return nil, err
	}

	specs := o.Columns
	if len(specs) == 0 {
		specs = []any{metadata.AllFields}
	}
	cols, err := table.Columns(reg, m.Key(), specs...)
	if err != nil {
		return nil, err
	}
	readFields := o.ReadFields
	if len(readFields) == 0 {
		readFields = []string{metadata.AllFields}
	}
	if readFields, err = reg.ExpandFields(m.Key(), readFields, false); err != nil {
		return nil, err
	}
	if o.Filter != nil {
		if _, err := filter.BuildPanel(reg, m.Key(), *o.Filter); err != nil {
			return nil, err
		}
	}

	v := &ModelViews{
		cfg:        cfg,
		Model:      m,
		Columns:    cols,
		readFields: readFields,
		formFields: o.FormFields,
		panel:      o.Filter,
		perPage:    o.ItemsPerPage,
		remember:   o.RememberState,
		history:    o.History,
		log:        cfg.Logger.WithModel(m.App, m.Name),
	}
	if v.perPage == 0 {
		v.perPage = cfg.DefaultItemsPerPage
	}

	prefix := o.Prefix
	if prefix == "" {
		prefix = "/" + m.App + "/" + m.Name
	}
	prefix = "/" + strings.Trim(prefix, "/")
	v.URLs = &URLSet{Model: m, Prefix: prefix, regs: make(map[Action]*Registration)}

	permission := func(action Action, verb string) string {
		if p, ok := o.Permissions[action]; ok {
			return p
		}
		return auth.Permission(m.App, verb, m.Name)
	}
	add := func(action Action, path string, methods []string, perm string, h gin.HandlerFunc) {
		v.URLs.regs[action] = &Registration{
			Name:       urlName(m, action),
			Action:     action,
			Model:      m,
			Path:       prefix + path,
			Methods:    methods,
			Permission: perm,
			Handler:    h,
		}
		v.URLs.order = append(v.URLs.order, action)
	}

	get := []string{http.MethodGet}
	getPost := []string{http.MethodGet, http.MethodPost}
	add(ActionBrowse, "/browse", getPost, permission(ActionBrowse, permissionVerbs[ActionBrowse]), v.Browse)
	add(ActionRead, "/read/:id", get, permission(ActionRead, permissionVerbs[ActionRead]), v.Read)
	add(ActionEdit, "/edit/:id", getPost, permission(ActionEdit, permissionVerbs[ActionEdit]), v.Edit)
	add(ActionAdd, "/add", getPost, permission(ActionAdd, permissionVerbs[ActionAdd]), v.Add)
	add(ActionDelete, "/delete/:id", getPost, permission(ActionDelete, permissionVerbs[ActionDelete]), v.Delete)
	add(ActionCopy, "/copy/:id", getPost, permission(ActionCopy, permissionVerbs[ActionCopy]), v.Copy)
	v.URLs.regs[ActionDelete].permissionFor = v.deletePermission

	for _, ext := range o.Extra {
		action := Action(ext.Name)
		if _, taken := v.URLs.regs[action]; taken || ext.Name == "" || ext.Handler == nil {
			return nil, apperror.NewModelConfiguration(fmt.Sprintf("invalid extension %q", ext.Name))
		}
		path := ext.Path
		if path == "" {
			path = "/" + ext.Name
		}
		methods := ext.Methods
		if len(methods) == 0 {
			methods = get
		}
		perm := ext.Permission
		if perm == "" {
			perm = permission(action, "view")
		}
		add(action, "/"+strings.TrimPrefix(path, "/"), methods, perm, ext.Handler(v))
	}

	v.bulkActions = o.BulkActions
	if v.bulkActions == nil {
		v.bulkActions = DefaultBulkActions(m)
	}
	return v, nil
}
