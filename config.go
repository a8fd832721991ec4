package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config holds the configuration options for the reconciler.
type Config struct {
	SourceTenantID string `json:"sourceTenantId,omitempty"`
	DestTenantID   string `json:"destTenantId,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
	ClientSecret   string `json:"clientSecret,omitempty"`
	SourceDomain   string `json:"sourceDomain,omitempty"`
	DestDomain     string `json:"destDomain,omitempty"`
	Attributes     string `json:"attributes,omitempty"`
	BaseURL        string `json:"baseUrl,omitempty"`
	CheckpointPath string `json:"checkpointPath,omitempty"`
	LogPath        string `json:"logPath,omitempty"`
	PageSize       int    `json:"pageSize,omitempty"`
	SnapshotDB     string `json:"snapshotDb,omitempty"`
	UseCache       string `json:"useCache,omitempty"`

	HealthCheck bool `json:"healthCheck,omitempty"`
}

const defaultAttributes = "displayName,department,jobTitle,mobilePhone,businessPhones"

// Tenant and application ids are GUIDs; catching a pasted display name or
// domain early beats a confusing Graph 400 later.
var guidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// LoadConfig loads the application's configuration from command-line flags,
// a JSON file, and environment variables, handling precedence correctly
// (flags win over file and env). It also handles the --version flag and
// exits if it is present.
func LoadConfig() (Config, error) {
	sourceTenant := flag.String("source-tenant", "", "Tenant ID of the source directory.")
	destTenant := flag.String("dest-tenant", "", "Tenant ID of the destination directory.")
	clientID := flag.String("client-id", "", "Application (client) ID registered in both tenants.")
	configFilePath := flag.String("config", "", "Path to a JSON configuration file. Command-line flags override file values.")
	sourceDomain := flag.String("source-domain", "", "Principal-name domain of the source tenant (e.g. 'contoso.com').")
	destDomain := flag.String("dest-domain", "", "Principal-name domain of the destination tenant.")
	attributes := flag.String("attributes", defaultAttributes, "Comma-separated list of user attributes to compare.")
	baseURL := flag.String("base-url", "", "Optional: Override the Graph API base address.")
	checkpointPath := flag.String("checkpoint", "", "Path to the checkpoint file for resumable sessions.")
	logPath := flag.String("log-path", "", "Optional: Also write JSON logs to this file.")
	pageSize := flag.Int("pageSize", 500, "The number of users to retrieve per page for API queries. Max is 999.")
	snapshotDB := flag.String("snapshot-db", "", "Path to a SQLite DB file to snapshot both tenants' user sets into.")
	useCache := flag.String("use-cache", "", "Path to a SQLite snapshot to list users from instead of the Graph API.")
	healthCheck := flag.Bool("healthcheck", false, "Check connectivity and authentication for both tenants, then exit.")
	versionFlag := flag.Bool("version", false, "Print the version and exit.")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Entra Tenant Reconciler v%s\n", version)
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("Entra Tenant Reconciler v%s\n", version)
		os.Exit(0)
	}

	// Start with default values from the flags themselves.
	config := Config{
		SourceTenantID: *sourceTenant,
		DestTenantID:   *destTenant,
		ClientID:       *clientID,
		SourceDomain:   *sourceDomain,
		DestDomain:     *destDomain,
		Attributes:     *attributes,
		BaseURL:        *baseURL,
		CheckpointPath: *checkpointPath,
		LogPath:        *logPath,
		PageSize:       *pageSize,
		SnapshotDB:     *snapshotDB,
		UseCache:       *useCache,
		HealthCheck:    *healthCheck,
	}

	// Load from config file if provided. This overwrites the defaults.
	if *configFilePath != "" {
		file, err := os.ReadFile(*configFilePath)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		if err := json.Unmarshal(file, &config); err != nil {
			return Config{}, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Load from environment variables. These overwrite file values but not flags.
	if val, ok := os.LookupEnv("SOURCE_TENANT_ID"); ok {
		config.SourceTenantID = val
	}
	if val, ok := os.LookupEnv("DEST_TENANT_ID"); ok {
		config.DestTenantID = val
	}
	if val, ok := os.LookupEnv("CLIENT_ID"); ok {
		config.ClientID = val
	}
	if val, ok := os.LookupEnv("CLIENT_SECRET"); ok {
		config.ClientSecret = val
	}

	// Re-apply any flags that were set on the command line to override the
	// config file/env vars.
	isSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		isSet[f.Name] = true
	})

	if isSet["source-tenant"] {
		config.SourceTenantID = *sourceTenant
	}
	if isSet["dest-tenant"] {
		config.DestTenantID = *destTenant
	}
	if isSet["client-id"] {
		config.ClientID = *clientID
	}
	if isSet["source-domain"] {
		config.SourceDomain = *sourceDomain
	}
	if isSet["dest-domain"] {
		config.DestDomain = *destDomain
	}
	if isSet["attributes"] {
		config.Attributes = *attributes
	}
	if isSet["base-url"] {
		config.BaseURL = *baseURL
	}
	if isSet["checkpoint"] {
		config.CheckpointPath = *checkpointPath
	}
	if isSet["log-path"] {
		config.LogPath = *logPath
	}
	if isSet["pageSize"] {
		config.PageSize = *pageSize
	}
	if isSet["snapshot-db"] {
		config.SnapshotDB = *snapshotDB
	}
	if isSet["use-cache"] {
		config.UseCache = *useCache
	}
	if isSet["healthcheck"] {
		config.HealthCheck = *healthCheck
	}

	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if !guidPattern.MatchString(c.SourceTenantID) {
		return fmt.Errorf("source tenant id %q is not a valid GUID", c.SourceTenantID)
	}
	if !guidPattern.MatchString(c.DestTenantID) {
		return fmt.Errorf("destination tenant id %q is not a valid GUID", c.DestTenantID)
	}
	if !guidPattern.MatchString(c.ClientID) {
		return fmt.Errorf("client id %q is not a valid GUID", c.ClientID)
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("CLIENT_SECRET must be set via config file or environment variable")
	}
	if c.HealthCheck {
		// Healthcheck needs credentials only; domain and attribute
		// validation does not apply.
		return nil
	}
	if strings.TrimSpace(c.SourceDomain) == "" {
		return fmt.Errorf("source domain must not be blank")
	}
	if strings.TrimSpace(c.DestDomain) == "" {
		return fmt.Errorf("destination domain must not be blank")
	}
	if c.PageSize > 999 || c.PageSize < 1 {
		return fmt.Errorf("pageSize must be between 1 and 999")
	}
	if len(c.attributeList()) == 0 {
		return fmt.Errorf("attribute list must name at least one attribute")
	}
	if c.UseCache != "" {
		if _, err := os.Stat(c.UseCache); os.IsNotExist(err) {
			return fmt.Errorf("cache file does not exist: %s", c.UseCache)
		}
		if c.SnapshotDB != "" {
			return fmt.Errorf("--snapshot-db is incompatible with --use-cache")
		}
	}
	return nil
}

// attributeList splits the configured comparison attributes, trimming
// whitespace and dropping empties. Order is preserved; the differ removes
// duplicates.
func (c *Config) attributeList() []string {
	var attrs []string
	for _, a := range strings.Split(c.Attributes, ",") {
		if a = strings.TrimSpace(a); a != "" {
			attrs = append(attrs, a)
		}
	}
	return attrs
}
