package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/op/go-logging"
	"github.com/spf13/cobra"

	"github.com/siteops/portal/config"
	"github.com/siteops/portal/database"
	"github.com/siteops/portal/database/model"
	"github.com/siteops/portal/logger"
	"github.com/siteops/portal/web"
	"github.com/siteops/portal/web/service"
)

func initLogger() {
	var level logging.Level
	switch config.GetLogLevel() {
	case config.Debug:
		level = logging.DEBUG
	case config.Info:
		level = logging.INFO
	case config.Notice:
		level = logging.NOTICE
	case config.Warn:
		level = logging.WARNING
	case config.Error:
		level = logging.ERROR
	default:
		log.Fatal("unknown log level:", config.GetLogLevel())
	}
	logger.InitLogger(level, config.GetLogFolder())
}

func openDB() error {
	return database.InitDB(config.GetDatabaseConfig())
}

func runWebServer() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())
	initLogger()
	defer logger.CloseLogger()

	if err := openDB(); err != nil {
		log.Fatal(err)
	}
	defer database.CloseDB()

	server := web.NewServer()
	if err := server.Start(); err != nil {
		log.Println(err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, os.Interrupt)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			server = web.NewServer()
			if err := server.Start(); err != nil {
				log.Println(err)
				return
			}
		default:
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			return
		}
	}
}

func migrateDb() error {
	if err := openDB(); err != nil {
		return err
	}
	defer database.CloseDB()
	fmt.Println("database schema is up to date")
	return nil
}

func createUser(username, displayName, password, role string) error {
	if err := openDB(); err != nil {
		return err
	}
	defer database.CloseDB()

	users := service.NewUserAdminService(database.GetDB())
	u, err := users.CreateUser(context.Background(), service.CreateUserInput{
		Username:    username,
		DisplayName: displayName,
		Password:    password,
		Role:        model.Role(role),
	})
	if err != nil {
		return fmt.Errorf("create user failed: %w", err)
	}
	fmt.Printf("user %s (id %d, role %s) created\n", u.Username, u.Id, u.Role)
	return nil
}

func resetPassword(username, password string) error {
	if err := openDB(); err != nil {
		return err
	}
	defer database.CloseDB()

	users := service.NewUserAdminService(database.GetDB())
	if err := users.ResetPasswordByName(context.Background(), username, password); err != nil {
		return fmt.Errorf("reset password failed: %w", err)
	}
	fmt.Println("password reset, the user must change it at next login")
	return nil
}

func showSetting() {
	settings := web.Settings()
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(data))
	if err := settings.CheckValid(); err != nil {
		fmt.Println("invalid setting:", err)
	}
}

func rotateSecret() error {
	if err := openDB(); err != nil {
		return err
	}
	defer database.CloseDB()

	if err := service.NewSettingService(database.GetDB()).RotateSecret(); err != nil {
		return fmt.Errorf("rotate secret failed: %w", err)
	}
	fmt.Println("secret rotated, restart the server to sign out every session")
	return nil
}

func main() {
	var envFile string
	var rootCmd = &cobra.Command{
		Use:   config.GetName(),
		Short: "Construction operations portal",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				return config.LoadEnvFile(envFile)
			}
			return config.LoadEnvFile()
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "load variables from this .env file")

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	}

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database schema and seed reference data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateDb()
		},
	}

	var userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var createCmd = &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			name, _ := cmd.Flags().GetString("name")
			password, _ := cmd.Flags().GetString("password")
			role, _ := cmd.Flags().GetString("role")
			return createUser(username, name, password, role)
		},
	}
	createCmd.Flags().String("username", "", "login name")
	createCmd.Flags().String("name", "", "display name")
	createCmd.Flags().String("password", "", "initial password")
	createCmd.Flags().String("role", string(model.RoleStandard), "admin or standard")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("password")

	var resetCmd = &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			return resetPassword(username, password)
		},
	}
	resetCmd.Flags().String("username", "", "login name")
	resetCmd.Flags().String("password", "", "new password")
	_ = resetCmd.MarkFlagRequired("username")
	_ = resetCmd.MarkFlagRequired("password")

	userCmd.AddCommand(createCmd, resetCmd)

	var settingCmd = &cobra.Command{
		Use:   "setting",
		Short: "Inspect settings",
	}

	var showCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		Run: func(cmd *cobra.Command, args []string) {
			showSetting()
		},
	}

	var rotateCmd = &cobra.Command{
		Use:   "rotate-secret",
		Short: "Replace the stored token signing secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rotateSecret()
		},
	}

	settingCmd.AddCommand(showCmd, rotateCmd)
	rootCmd.AddCommand(runCmd, migrateCmd, userCmd, settingCmd)

	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
