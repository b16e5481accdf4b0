package store

import (
	"time"
)

// DocType identifies the kind of a stored document.
type DocType string

const (
	TypeWorkspace         DocType = "Workspace"
	TypeEnvironment       DocType = "Environment"
	TypeRequest           DocType = "Request"
	TypeResponse          DocType = "Response"
	TypeCookieJar         DocType = "CookieJar"
	TypeClientCertificate DocType = "ClientCertificate"
	TypeSettings          DocType = "Settings"
)

// idPrefixes maps document types to their id prefixes.
var idPrefixes = map[DocType]string{
	TypeWorkspace:         "wrk",
	TypeEnvironment:       "env",
	TypeRequest:           "req",
	TypeResponse:          "res",
	TypeCookieJar:         "jar",
	TypeClientCertificate: "crt",
	TypeSettings:          "set",
}

// Meta holds the identity and lineage fields shared by every document.
// Timestamps are assigned by the store on Create and Update.
type Meta struct {
	ID       string    `json:"id"`
	Type     DocType   `json:"type"`
	ParentID string    `json:"parentId,omitempty"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// DocMeta implements Doc.
func (m *Meta) DocMeta() *Meta { return m }

// Doc is anything the store can persist.
type Doc interface {
	DocMeta() *Meta
}

// Workspace is the root container for requests, jars and certificates.
type Workspace struct {
	Meta
	Name string `json:"name"`
}

// Environment holds the variables a request is rendered against.
type Environment struct {
	Meta
	Name      string            `json:"name"`
	Variables map[string]string `json:"variables,omitempty"`
}

// Header is a single ordered name/value header entry. Entries with an
// empty name are kept in the document but skipped at send time.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Parameter is a query or form parameter. Type "file" marks a multipart
// file field whose content is read from FileName at send time.
type Parameter struct {
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	Type     string `json:"type,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// ParamTypeFile marks a multipart parameter sourced from disk.
const ParamTypeFile = "file"

// Body describes a request body. Exactly one of Text, Params or
// FileName is meaningful depending on MimeType.
type Body struct {
	MimeType string      `json:"mimeType,omitempty"`
	Text     string      `json:"text,omitempty"`
	FileName string      `json:"fileName,omitempty"`
	Params   []Parameter `json:"params,omitempty"`
}

// Request is a stored, unrendered request document.
type Request struct {
	Meta
	Name        string      `json:"name"`
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	Headers     []Header    `json:"headers,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	Body        Body        `json:"body"`
	CookieJarID string      `json:"cookieJarId,omitempty"`
}

// Cookie is one record in a jar.
type Cookie struct {
	Key      string    `json:"key"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"httpOnly,omitempty"`
	HostOnly bool      `json:"hostOnly,omitempty"`
}

// CookieJar is an ordered list of cookie records owned by a workspace.
type CookieJar struct {
	Meta
	Name    string   `json:"name"`
	Cookies []Cookie `json:"cookies,omitempty"`
}

// ClientCertificate is TLS client material scoped to one host:port.
// Cert/Key carry PEM bytes; PFX carries a PKCS#12 bundle. The binary
// fields ride through JSON as base64.
type ClientCertificate struct {
	Meta
	Host       string `json:"host"`
	Cert       []byte `json:"cert,omitempty"`
	Key        []byte `json:"key,omitempty"`
	PFX        []byte `json:"pfx,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
	Disabled   bool   `json:"disabled,omitempty"`
}

// Settings holds the transport-level preferences applied to every send.
// A zero Timeout means unbounded.
type Settings struct {
	Meta
	HTTPProxy       string        `json:"httpProxy,omitempty"`
	HTTPSProxy      string        `json:"httpsProxy,omitempty"`
	FollowRedirects bool          `json:"followRedirects"`
	Timeout         time.Duration `json:"timeout,omitempty"`
	ValidateSSL     bool          `json:"validateSSL"`
}

// Response is the captured outcome of one logical send. ParentID always
// names the originating request, regardless of internal retries.
type Response struct {
	Meta
	URL           string        `json:"url"`
	StatusCode    int           `json:"statusCode"`
	StatusMessage string        `json:"statusMessage"`
	ContentType   string        `json:"contentType,omitempty"`
	Headers       []Header      `json:"headers,omitempty"`
	Body          []byte        `json:"body,omitempty"`
	BodyEncoding  string        `json:"bodyEncoding,omitempty"`
	ElapsedTime   time.Duration `json:"elapsedTime"`
	BytesRead     int64         `json:"bytesRead"`
	Error         string        `json:"error,omitempty"`
}

// BodyEncodingBase64 tags response bodies carried as base64 (the only
// encoding the store currently writes).
const BodyEncodingBase64 = "base64"
