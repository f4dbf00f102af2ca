package content

// Page is one site page. Slug is its identity and the stem of both its
// stored document and its generated HTML file.
type Page struct {
	Slug     string    `json:"slug"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// IndexSlug names the home page. It always exists and cannot be deleted.
const IndexSlug = "index"

// IsIndex reports whether p is the home page.
func (p Page) IsIndex() bool {
	return p.Slug == IndexSlug
}

// Section is one typed content block of a page. Props are kept as an open
// object so section types unknown to this build survive a round trip.
type Section struct {
	Type  string         `json:"type"`
	Props map[string]any `json:"props"`
}

// Theme holds the design tokens applied to every generated page.
type Theme struct {
	Colors ThemeColors `json:"colors"`
	Fonts  ThemeFonts  `json:"fonts"`
	Radius ThemeRadius `json:"radius"`
}

type ThemeColors struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Text       string `json:"text"`
	Background string `json:"background"`
}

type ThemeFonts struct {
	Display string `json:"display"`
	Body    string `json:"body"`
}

type ThemeRadius struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

// DefaultTheme returns the palette written on first run.
func DefaultTheme() Theme {
	return Theme{
		Colors: ThemeColors{
			Primary:    "#9C6BFF",
			Secondary:  "#A3E3C2",
			Text:       "#1E1E1E",
			Background: "#F8F8FF",
		},
		Fonts: ThemeFonts{
			Display: "Outfit",
			Body:    "Inter",
		},
		Radius: ThemeRadius{
			Small:  "0.5rem",
			Medium: "1rem",
			Large:  "2rem",
		},
	}
}

// Settings is the stored site configuration. The deployment password is
// not part of the stored document; see SecretStore.
type Settings struct {
	Admin      AdminAccount `json:"admin"`
	Deployment Deployment   `json:"deployment"`
	AutoDeploy bool         `json:"autoDeploy"`
}

// AdminAccount is the single administrator login.
type AdminAccount struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

// Deployment holds SFTP parameters. Password is populated from the secret
// store on read and is never serialized into settings.json.
type Deployment struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"-"`
	RemotePath string `json:"remotePath"`
}

// DefaultSSHPort is used when the deployment port is unset.
const DefaultSSHPort = 22

// PublicSettings is the read view returned by the API: no password hash and
// no deployment password.
type PublicSettings struct {
	Admin      PublicAdmin      `json:"admin"`
	Deployment PublicDeployment `json:"deployment"`
	AutoDeploy bool             `json:"autoDeploy"`
}

type PublicAdmin struct {
	Username string `json:"username"`
}

type PublicDeployment struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	RemotePath  string `json:"remotePath"`
	PasswordSet bool   `json:"passwordSet"`
}

// Public strips every secret from s.
func (s Settings) Public() PublicSettings {
	return PublicSettings{
		Admin: PublicAdmin{Username: s.Admin.Username},
		Deployment: PublicDeployment{
			Host:        s.Deployment.Host,
			Port:        s.Deployment.Port,
			Username:    s.Deployment.Username,
			RemotePath:  s.Deployment.RemotePath,
			PasswordSet: s.Deployment.Password != "",
		},
		AutoDeploy: s.AutoDeploy,
	}
}

// SettingsUpdate is a partial settings write. Nil fields keep their stored
// value.
type SettingsUpdate struct {
	Admin      *AdminUpdate      `json:"admin,omitempty"`
	Deployment *DeploymentUpdate `json:"deployment,omitempty"`
	AutoDeploy *bool             `json:"autoDeploy,omitempty"`
}

// AdminUpdate changes the login. Empty values are ignored; Password is
// plaintext and is hashed before anything is stored.
type AdminUpdate struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// DeploymentUpdate changes deployment parameters field by field. An empty
// Password keeps the stored secret; ClearPassword removes it.
type DeploymentUpdate struct {
	Host          *string `json:"host,omitempty"`
	Port          *int    `json:"port,omitempty"`
	Username      *string `json:"username,omitempty"`
	Password      *string `json:"password,omitempty"`
	ClearPassword bool    `json:"clearPassword,omitempty"`
	RemotePath    *string `json:"remotePath,omitempty"`
}
