package cmd

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"maplocate/api/internal/cache"
	"maplocate/api/internal/database"
	"maplocate/api/internal/policy"
	"maplocate/api/internal/repository"
	"maplocate/api/internal/service"
	"maplocate/api/internal/session"
)

var superuser struct {
	login     string
	password  string
	firstname string
	lastname  string
}

var createSuperuserCmd = &cobra.Command{
	Use:   "create-superuser",
	Short: "Create an admin user that passes every permission check",
	Example: `  # Bootstrap the first administrator
  api create-superuser --login root@example.com --password 's3cret'`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateSuperuserLogin(superuser.login)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()

		users := repository.NewUserRepository(pool)
		sessions := session.NewManager(redisClient, cfg.Security, logger)
		pol := policy.New(users, repository.NewRoleRepository(pool), sessions)
		svc := service.NewUserService(users, sessions, pol, logger)

		user, err := svc.Create(ctx, service.CreateUserInput{
			Login:       superuser.login,
			Password:    superuser.password,
			Firstname:   superuser.firstname,
			Lastname:    superuser.lastname,
			IsSuperuser: true,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created superuser %s (id %d)\n", user.Login, user.ID)
		return nil
	},
}

func validateSuperuserLogin(login string) error {
	if err := validator.New().Var(login, "required,email,max=64"); err != nil {
		return fmt.Errorf("invalid --login %q: must be an email of at most 64 characters", login)
	}
	return nil
}

func init() {
	createSuperuserCmd.Flags().StringVar(&superuser.login, "login", "", "login of the new superuser")
	createSuperuserCmd.Flags().StringVar(&superuser.password, "password", "", "password of the new superuser")
	createSuperuserCmd.Flags().StringVar(&superuser.firstname, "firstname", "", "first name")
	createSuperuserCmd.Flags().StringVar(&superuser.lastname, "lastname", "", "last name")
	_ = createSuperuserCmd.MarkFlagRequired("login")
	_ = createSuperuserCmd.MarkFlagRequired("password")
}
