package vaultclient

import "time"

// Team is the minimal team reference embedded in users, certificates and keys
type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TeamDetail is a team together with its members
type TeamDetail struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Members []User `json:"members"`
}

// User is the remote user record returned by /users/me/ and /users/
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsAdmin   bool   `json:"is_admin"`
	Teams     []Team `json:"teams,omitempty"`
}

// DisplayName returns "First Last", falling back to the username and then the email
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	}
	return u.Email
}

// CertificateType classifies a certificate's position in its chain
type CertificateType string

const (
	CertificateRootCA         CertificateType = "RootCA"
	CertificateIntermediateCA CertificateType = "IntermediateCA"
	CertificateLeaf           CertificateType = "Leaf"
)

// Certificate is a stored certificate with its chain children
type Certificate struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Comment            string          `json:"comment"`
	Subject            string          `json:"subject"`
	Issuer             string          `json:"issuer"`
	SerialNumber       string          `json:"serial_number"`
	NotBefore          time.Time       `json:"not_before"`
	NotAfter           time.Time       `json:"not_after"`
	IsExpired          bool            `json:"is_expired"`
	PublicKeyType      string          `json:"public_key_type"`
	PublicKeyLength    int             `json:"public_key_length"`
	SignatureAlgorithm string          `json:"signature_algorithm"`
	SAN                []string        `json:"san"`
	CertFile           string          `json:"cert_file"`
	FileFormat         string          `json:"file_format"`
	OriginalFilename   string          `json:"original_filename"`
	CertHash           string          `json:"cert_hash"`
	IssuerHash         string          `json:"issuer_hash"`
	SubjectHash        string          `json:"subject_hash"`
	CertificateType    CertificateType `json:"certificate_type"`
	Parent             *int64          `json:"parent"`
	Children           []Certificate   `json:"children"`
	AccessTeams        []Team          `json:"access_teams"`
	Websites           []Website       `json:"websites"`
	HasPrivateKey      bool            `json:"has_private_key"`
}

// Walk visits c and every descendant depth first. Returning false stops the walk.
func (c *Certificate) Walk(fn func(cert *Certificate, depth int) bool) bool {
	return c.walk(fn, 0)
}

func (c *Certificate) walk(fn func(cert *Certificate, depth int) bool, depth int) bool {
	if !fn(c, depth) {
		return false
	}
	for i := range c.Children {
		if !c.Children[i].walk(fn, depth+1) {
			return false
		}
	}
	return true
}

// ExpiresWithin reports whether the certificate expires before now+d
func (c *Certificate) ExpiresWithin(now time.Time, d time.Duration) bool {
	return c.NotAfter.Before(now.Add(d))
}

// CertificateSummary is the compact certificate form embedded in keys and dashboards
type CertificateSummary struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	NotAfter time.Time `json:"not_after,omitempty"`
	Subject  string    `json:"subject,omitempty"`
}

// PrivateKey is a stored (server-side encrypted) private key
type PrivateKey struct {
	ID               int64               `json:"id"`
	Name             string              `json:"name"`
	Comment          string              `json:"comment"`
	EncryptedKeyFile string              `json:"encrypted_key_file"`
	CreatedAt        time.Time           `json:"created_at"`
	Certificate      *CertificateSummary `json:"certificate"`
	KeySize          int                 `json:"keysize"`
	UploadedBy       string              `json:"uploaded_by"`
	FileFormat       string              `json:"file_format"`
	OriginalFilename string              `json:"original_filename"`
	AccessTeams      []Team              `json:"access_teams"`
}

// Website is a URL served by a certificate
type Website struct {
	ID          int64               `json:"id"`
	URL         string              `json:"url"`
	Domain      string              `json:"domain"`
	Certificate *CertificateSummary `json:"certificate,omitempty"`
}

// CertificateUpdate is the PATCH body for a certificate. Nil fields are left untouched.
type CertificateUpdate struct {
	Name        *string `json:"name,omitempty"`
	Comment     *string `json:"comment,omitempty"`
	AccessTeams []int64 `json:"access_teams,omitempty"`
}

// KeyUpdate is the PATCH body for a private key. Nil fields are left untouched.
type KeyUpdate struct {
	Name        *string `json:"name,omitempty"`
	Comment     *string `json:"comment,omitempty"`
	AccessTeams []int64 `json:"access_teams,omitempty"`
	Certificate *int64  `json:"certificate,omitempty"`
}

// ExportFormat is the encoding requested from the export endpoint
type ExportFormat string

const (
	ExportPEM ExportFormat = "pem"
	ExportDER ExportFormat = "der"
	ExportPFX ExportFormat = "pfx"
)

// ExportOptions selects what the export endpoint bundles with the certificate
type ExportOptions struct {
	Format       ExportFormat
	IncludeKey   bool
	IncludeChain bool
	// Password protects PFX bundles and is required for them
	Password string
}

// UploadPreview is the server's parse result for an uploaded certificate file.
// The parsed material is held in the server session under SessionKey for a
// few minutes; ImportCertMetadata must be sent with the same cookie jar.
type UploadPreview struct {
	Status       string               `json:"status"`
	Format       string               `json:"format"`
	SessionKey   string               `json:"session_key"`
	Certificates []PreviewCertificate `json:"certificates"`
	PrivateKey   *PreviewKey          `json:"private_key"`
}

// PreviewCertificate is one certificate found in an uploaded file
type PreviewCertificate struct {
	TempID     string    `json:"temp_id"`
	Filename   string    `json:"filename"`
	CommonName string    `json:"common_name"`
	Subject    string    `json:"subject"`
	NotAfter   time.Time `json:"not_after"`
	Serial     string    `json:"serial"`
}

// PreviewKey is the private key found in an uploaded file
type PreviewKey struct {
	TempID    string `json:"temp_id"`
	Type      string `json:"type"`
	BitLength int    `json:"bit_length"`
	Filename  string `json:"filename"`
}

// ImportRequest selects which previewed items to store and how to label them
type ImportRequest struct {
	SessionKey string              `json:"session_key"`
	Certs      []ImportCertificate `json:"certs"`
	Key        *ImportKey          `json:"key,omitempty"`
}

// ImportCertificate names a previewed certificate and grants it to teams
type ImportCertificate struct {
	TempID string   `json:"temp_id"`
	Name   string   `json:"name"`
	Teams  []int64  `json:"teams"`
	URLs   []string `json:"urls"`
}

// ImportKey stores the previewed key, optionally linked to an imported certificate
type ImportKey struct {
	TempID           string  `json:"temp_id"`
	Filename         string  `json:"filename"`
	Teams            []int64 `json:"teams"`
	BitLength        int     `json:"bit_length"`
	LinkedCertTempID string  `json:"linked_cert_temp_id,omitempty"`
}

// ImportResult is the import endpoint's answer
type ImportResult struct {
	Message       string `json:"message"`
	ImportedCount int    `json:"imported_count"`
}

// DashboardOverview is the certificate count summary shown on the dashboard
type DashboardOverview struct {
	Total   int `json:"total_certificates"`
	Expired int `json:"expired_certificates"`
	Valid   int `json:"valid_certificates"`
}

// ExpiringSoon counts valid certificates expiring within Days
type ExpiringSoon struct {
	Count int `json:"expiring_soon_certificates"`
	Days  int `json:"days_selected"`
}
