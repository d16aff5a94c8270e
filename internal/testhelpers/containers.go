// This file starts the MariaDB and Redis containers used by integration
// tests and by cmd/testcontainers. Settings come from the environment, with
// defaults good enough for a local docker daemon.

package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/localnerve/minisitedb/data"
	"github.com/localnerve/minisitedb/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultDBImage    = "mariadb:11.4"
	defaultRedisImage = "redis:7-alpine"
	redisPort         = "6379/tcp"
)

type TestContainers struct {
	Network        *testcontainers.DockerNetwork
	DBContainer    testcontainers.Container
	RedisContainer testcontainers.Container

	// Host side addresses of the started containers
	DBHost   string
	DBPort   string
	RedisURL string
}

func (tc *TestContainers) Terminate(t *testing.T) {
	ctx := context.Background()
	if tc.RedisContainer != nil {
		if err := tc.RedisContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate Redis: %v", err)
		}
	}
	if tc.DBContainer != nil {
		if err := tc.DBContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate MariaDB: %v", err)
		}
	}
	if tc.Network != nil {
		if err := tc.Network.Remove(ctx); err != nil {
			logMessage(t, "Failed to remove network: %v", err)
		}
	}
}

// Config returns an app configuration pointing at the started containers
func (tc *TestContainers) Config() *config.Config {
	return &config.Config{
		Port:                 getenv("PORT", "3000"),
		Env:                  "test",
		LogLevel:             "warn",
		DBType:               "mariadb",
		DBHost:               tc.DBHost,
		DBPort:               tc.DBPort,
		DBAppDatabase:        getenv("DB_APP_DATABASE", "minisites"),
		DBAppUser:            getenv("DB_APP_USER", "minisite_app"),
		DBAppPassword:        getenv("DB_APP_PASSWORD", "minisite_app_pw"),
		DBAppConnectionLimit: 10,
		DBLogLevel:           "silent",
		RedisURL:             tc.RedisURL,
		CacheTTLSeconds:      60,
		AuthRequired:         false,
	}
}

func CreateAllTestContainers(t *testing.T) (*TestContainers, error) {
	ctx := context.Background()
	testContainers := &TestContainers{}

	debugContainer := os.Getenv("DEBUG_CONTAINER")

	// Create a network
	nw, err := network.New(ctx)
	if err != nil {
		exitWithError(t, err, "Failed to create network")
	}
	testContainers.Network = nw
	networkName := nw.Name

	// Create and start the Database container
	dbImage := getenv("DB_IMAGE", defaultDBImage)
	dbNetworkName := getenv("DB_HOST", "mariadb")
	tcpDbPort, err := nat.NewPort("tcp", getenv("DB_PORT", "3306"))
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to create DB port")
	}

	if exists, err := imageExists(ctx, dbImage); err == nil && !exists {
		logMessage(t, "Image %s not found locally, pulling...", dbImage)
	}

	dbHostConfigModifier := func(hostConfig *container.HostConfig) {
		hostConfig.Tmpfs = map[string]string{"/var/lib/mysql": "rw"}
		if debugContainer == "true" {
			// Fixed host port so a local client can attach
			hostConfig.PortBindings = nat.PortMap{
				tcpDbPort: []nat.PortBinding{
					{HostIP: "127.0.0.1", HostPort: getenv("DB_DEBUG_PORT", "13306")},
				},
			}
		}
	}

	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:              dbImage,
			ExposedPorts:       []string{string(tcpDbPort)},
			Env:                getDBInitEnvMap(),
			HostConfigModifier: dbHostConfigModifier,
			WaitingFor:         wait.ForListeningPort(tcpDbPort).WithStartupTimeout(90 * time.Second),
			Networks:           []string{networkName},
			NetworkAliases: map[string][]string{
				networkName: {dbNetworkName},
			},
		},
		Started: true,
	})
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to start Database")
	}
	testContainers.DBContainer = dbContainer

	dbHost, _ := dbContainer.Host(ctx)
	dbPort, _ := dbContainer.MappedPort(ctx, tcpDbPort)
	testContainers.DBHost = dbHost
	testContainers.DBPort = dbPort.Port()

	if err := performMySqlDBInit(dbHost, dbPort); err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to initialize databases")
	}
	logMessage(t, "DB_HOST=%s DB_PORT=%s", dbHost, dbPort.Port())

	// Create and start the Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        getenv("REDIS_IMAGE", defaultRedisImage),
			ExposedPorts: []string{redisPort},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
			Networks:     []string{networkName},
			NetworkAliases: map[string][]string{
				networkName: {"redis"},
			},
		},
		Started: true,
	})
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to start Redis")
	}
	testContainers.RedisContainer = redisContainer

	redisHost, _ := redisContainer.Host(ctx)
	redisMapped, _ := redisContainer.MappedPort(ctx, redisPort)
	testContainers.RedisURL = fmt.Sprintf("redis://%s:%s/0", redisHost, redisMapped.Port())
	logMessage(t, "REDIS_URL=%s", testContainers.RedisURL)

	logMessage(t, "Minisite testcontainers started successfully")
	return testContainers, nil
}

func getDBInitEnvMap() map[string]string {
	return map[string]string{
		"MYSQL_ROOT_PASSWORD": getenv("DB_ROOT_PASSWORD", "root_pw"),
		"MYSQL_DATABASE":      getenv("DB_APP_DATABASE", "minisites"),
		"MYSQL_USER":          getenv("DB_APP_USER", "minisite_app"),
		"MYSQL_PASSWORD":      getenv("DB_APP_PASSWORD", "minisite_app_pw"),
	}
}

func performMySqlDBInit(dbHost string, dbPort nat.Port) error {
	rootPassword := getenv("DB_ROOT_PASSWORD", "root_pw")
	appDatabase := getenv("DB_APP_DATABASE", "minisites")
	appUser := getenv("DB_APP_USER", "minisite_app")
	appPassword := getenv("DB_APP_PASSWORD", "minisite_app_pw")

	db, err := sql.Open("mysql", fmt.Sprintf("root:%s@tcp(%s:%s)/", rootPassword, dbHost, dbPort.Port()))
	if err != nil {
		return fmt.Errorf("failed to connect to MariaDB for setup: %w", err)
	}
	defer db.Close()

	// Wait for connection to be really ready
	for i := 0; i < 30; i++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("MariaDB not ready after 30 seconds: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", appDatabase)); err != nil {
		return fmt.Errorf("failed to create %s: %w", appDatabase, err)
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s'", appUser, appPassword)); err != nil {
		return fmt.Errorf("failed to create user %s: %w", appUser, err)
	}

	appDB, err := sql.Open("mysql", fmt.Sprintf("root:%s@tcp(%s:%s)/%s", rootPassword, dbHost, dbPort.Port(), appDatabase))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", appDatabase, err)
	}
	defer appDB.Close()

	placeholders := strings.NewReplacer(
		"{{DB_APP_DATABASE}}", appDatabase,
		"{{DB_APP_USER}}", appUser,
	)
	if err := executeSQL(appDB, placeholders.Replace(data.InitdbMariaDBTables)); err != nil {
		return fmt.Errorf("failed to execute tables init sql: %w", err)
	}
	if err := executeSQL(appDB, placeholders.Replace(data.InitdbMariaDBPrivileges)); err != nil {
		return fmt.Errorf("failed to execute privileges init sql: %w", err)
	}
	return nil
}

// executeSQL runs a script one statement at a time, dropping -- comments
// that sit outside quotes.
func executeSQL(db *sql.DB, script string) error {
	lines := strings.Split(script, "\n")

	ncls := make([]string, 0, len(lines))
	for _, l := range lines {
		ncls = append(ncls, excludeComment(l))
	}

	queries := strings.Split(strings.Join(ncls, "\n"), ";")
	for _, q := range queries {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("%s : when executing > %s", err.Error(), q)
		}
	}
	return nil
}

func excludeComment(line string) string {
	const (
		d = "\""
		s = "'"
		c = "--"
	)

	var nc string
	ck := line
	mx := len(line) + 1

	for {
		if len(ck) == 0 {
			return nc
		}

		di := strings.Index(ck, d)
		si := strings.Index(ck, s)
		ci := strings.Index(ck, c)

		if di < 0 {
			di = mx
		}
		if si < 0 {
			si = mx
		}
		if ci < 0 {
			ci = mx
		}

		var quote string
		switch {
		case di < si && di < ci:
			quote = d
		case si < di && si < ci:
			quote = s
		case ci < di && ci < si:
			return nc + ck[:ci]
		default:
			return nc + ck
		}

		qi := strings.Index(ck, quote)
		nc += ck[:qi+1]
		ck = ck[qi+1:]

		ei := strings.Index(ck, quote)
		if ei < 0 {
			// Unterminated quote, keep the rest as is
			return nc + ck
		}
		nc += ck[:ei+1]
		ck = ck[ei+1:]
	}
}

func imageExists(ctx context.Context, imageName string) (bool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return false, err
	}
	defer cli.Close()

	images, err := cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == imageName {
				return true, nil
			}
		}
	}

	return false, nil
}

func getenv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func exitWithError(t *testing.T, err error, msg string) {
	if t != nil {
		t.Fatalf(msg+": %v", err)
	} else {
		fmt.Printf(msg+": %v\n", err)
		os.Exit(1)
	}
}

func logMessage(t *testing.T, format string, args ...any) {
	if t != nil {
		t.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}
