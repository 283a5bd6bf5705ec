package deploy

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	compose "github.com/compose-spec/compose-go/v2/types"
	units "github.com/docker/go-units"
)

// Environment variables read by the linuxserver chromium image
const (
	EnvUser      = "CUSTOM_USER"
	EnvPassword  = "PASSWORD"
	EnvChromeCLI = "CHROME_CLI"
	EnvTimezone  = "TZ"
	EnvPUID      = "PUID"
	EnvPGID      = "PGID"
)

const descriptorHeader = "# Managed by browser-setup. Re-run the installer instead of editing.\n"

// Descriptor is a rendered compose file. Sensitive is set when the content
// embeds credentials; writers must restrict permissions before writing.
type Descriptor struct {
	Content   []byte
	Sensitive bool
}

// Render builds the compose descriptor for cfg. Identical input always
// yields identical bytes.
func Render(cfg DeploymentConfig) (Descriptor, error) {
	if err := cfg.Validate(); err != nil {
		return Descriptor{}, err
	}

	project, err := buildProject(&cfg)
	if err != nil {
		return Descriptor{}, err
	}

	body, err := project.MarshalYAML()
	if err != nil {
		return Descriptor{}, fmt.Errorf("marshal descriptor: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(descriptorHeader)
	buf.Write(body)

	return Descriptor{Content: buf.Bytes(), Sensitive: cfg.Sensitive()}, nil
}

func buildProject(cfg *DeploymentConfig) (*compose.Project, error) {
	shmBytes, err := units.RAMInBytes(cfg.ShmSize())
	if err != nil {
		return nil, fmt.Errorf("invalid shm size %q: %w", cfg.ShmSize(), err)
	}

	username, password := "", ""
	if cfg.Credentials != nil {
		username = cfg.Credentials.Username
		password = cfg.Credentials.Password
	}

	// The map key names the service; leaving Name unset keeps it out of the YAML
	service := compose.ServiceConfig{
		ContainerName: ContainerName,
		Image:         Image,
		Environment: compose.MappingWithEquals{
			EnvUser:      literal(username),
			EnvPassword:  literal(password),
			EnvChromeCLI: literal(ProxyFlag(cfg.Proxy)),
			EnvTimezone:  literal(cfg.Timezone),
			EnvPUID:      literal(strconv.Itoa(cfg.PUID)),
			EnvPGID:      literal(strconv.Itoa(cfg.PGID)),
		},
		Volumes: []compose.ServiceVolumeConfig{
			{
				Type:   compose.VolumeTypeBind,
				Source: filepath.Join(cfg.WorkDir, ConfigDirName),
				Target: ConfigMountTarget,
			},
		},
		Ports: []compose.ServicePortConfig{
			{Mode: "ingress", Target: InternalHTTPPort, Published: strconv.Itoa(cfg.Ports.Primary), Protocol: "tcp"},
			{Mode: "ingress", Target: InternalHTTPSPort, Published: strconv.Itoa(cfg.Ports.Secondary), Protocol: "tcp"},
		},
		ShmSize:     compose.UnitBytes(shmBytes),
		Restart:     RestartPolicy,
		SecurityOpt: []string{SeccompOption},
	}

	return &compose.Project{
		Name:     ProjectName,
		Services: compose.Services{ServiceName: service},
	}, nil
}

// literal escapes $ so compose interpolation yields the value unchanged
func literal(value string) *string {
	escaped := strings.ReplaceAll(value, "$", "$$")
	return &escaped
}

// ProxyFlag returns the chromium command-line flag for proxy, or "" when unset
func ProxyFlag(proxy *Proxy) string {
	if proxy == nil {
		return ""
	}
	auth := ""
	if proxy.HasAuth() {
		auth = proxy.AuthUser + ":" + proxy.AuthPass + "@"
	}
	return fmt.Sprintf("--proxy-server=%s://%s%s", proxy.Scheme, auth, proxy.Address())
}

// Deployed is what a descriptor on disk says about the running service
type Deployed struct {
	Ports       Ports
	Username    string
	PasswordSet bool
	Timezone    string
	ProxyFlag   string
	ShmBytes    int64
}

// Parse loads a descriptor with the compose loader and reports the values
// the status view needs.
func Parse(ctx context.Context, data []byte) (*Deployed, error) {
	details := compose.ConfigDetails{
		ConfigFiles: []compose.ConfigFile{
			{Filename: DescriptorName, Content: data},
		},
		Environment: compose.Mapping{},
	}

	project, err := loader.LoadWithContext(ctx, details, func(o *loader.Options) {
		o.SetProjectName(ProjectName, true)
	})
	if err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}

	service, ok := project.Services[ServiceName]
	if !ok {
		return nil, fmt.Errorf("descriptor has no %s service", ServiceName)
	}

	deployed := &Deployed{
		Username:    envValue(service.Environment, EnvUser),
		PasswordSet: envValue(service.Environment, EnvPassword) != "",
		Timezone:    envValue(service.Environment, EnvTimezone),
		ProxyFlag:   envValue(service.Environment, EnvChromeCLI),
		ShmBytes:    int64(service.ShmSize),
	}

	for _, port := range service.Ports {
		published, err := strconv.Atoi(port.Published)
		if err != nil {
			continue
		}
		switch port.Target {
		case InternalHTTPPort:
			deployed.Ports.Primary = published
		case InternalHTTPSPort:
			deployed.Ports.Secondary = published
		}
	}

	return deployed, nil
}

func envValue(env compose.MappingWithEquals, key string) string {
	if v, ok := env[key]; ok && v != nil {
		return *v
	}
	return ""
}
