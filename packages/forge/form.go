package forge

import "slices"

// FormFile is the content of a file part. Data is sent as-is; when Data is
// nil the transport reads Path from disk at dispatch time.
type FormFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Path        string
}

// FormField is one entry of a multipart form: a text value or a file.
type FormField struct {
	Name  string
	Value string
	File  *FormFile
}

// Form is an ordered multipart form. Appending never replaces an existing
// field, so repeated names produce multi-value fields.
type Form struct {
	fields []FormField
}

func NewForm() *Form {
	return &Form{}
}

func (f *Form) payload() {}

func (f *Form) Append(name, value string) {
	f.fields = append(f.fields, FormField{Name: name, Value: value})
}

func (f *Form) AppendFile(name string, file *FormFile) {
	f.fields = append(f.fields, FormField{Name: name, File: file})
}

// AppendForm appends every field of other, in order.
func (f *Form) AppendForm(other *Form) {
	if other == nil {
		return
	}
	f.fields = append(f.fields, other.fields...)
}

// AppendObject flattens o into form fields. *FormFile values become file
// parts, everything else is coerced like Object.Pairs.
func (f *Form) AppendObject(o Object) {
	o.each(func(key string, v any) {
		if file, ok := v.(*FormFile); ok {
			f.AppendFile(key, file)
			return
		}
		f.Append(key, stringify(v))
	})
}

// Fields returns a copy of the form's entries.
func (f *Form) Fields() []FormField {
	if f == nil {
		return nil
	}
	return slices.Clone(f.fields)
}

func (f *Form) Len() int {
	if f == nil {
		return 0
	}
	return len(f.fields)
}

// Get returns the first text value stored under name.
func (f *Form) Get(name string) string {
	for _, field := range f.Fields() {
		if field.Name == name && field.File == nil {
			return field.Value
		}
	}
	return ""
}

func (f *Form) Values(name string) []string {
	var values []string
	for _, field := range f.Fields() {
		if field.Name == name && field.File == nil {
			values = append(values, field.Value)
		}
	}
	return values
}

// FormOf builds a form from an object.
func FormOf(o Object) *Form {
	f := NewForm()
	f.AppendObject(o)
	return f
}
