package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/handlers"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/models"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/protocol"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/wsclient"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type watchOptions struct {
	baseURL  string
	email    string
	password string
}

func newWatchCmd(cfgPath *string) *cobra.Command {
	var opts watchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sign in and stream the tenant's change notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			api := &apiClient{base: opts.baseURL, http: &http.Client{Timeout: 10 * time.Second}}
			if err := api.login(ctx, opts.email, opts.password); err != nil {
				return err
			}

			url, err := wsclient.EndpointURL(opts.baseURL, cfg.Realtime.Path)
			if err != nil {
				return err
			}
			header := http.Header{}
			header.Set("Authorization", "Bearer "+api.token)

			manager := wsclient.NewManager(wsclient.Options{
				URL:         url,
				Dialer:      wsclient.GorillaDialer{Header: header},
				BaseDelay:   cfg.Client.BaseDelay,
				MaxDelay:    cfg.Client.MaxDelay,
				MaxAttempts: cfg.Client.MaxAttempts,
				Logger:      logger,
				OnStatus: func(s wsclient.Status, msg string) {
					logger.Info("connection status", zap.String("status", string(s)), zap.String("error", msg))
				},
			})

			unsub := manager.Subscribe(func(f protocol.Frame) {
				if c, ok := f.(protocol.Change); ok {
					logger.Info("change",
						zap.String("resource", c.Resource),
						zap.String("action", string(c.Action)),
						zap.String("timestamp", c.Timestamp),
						zap.ByteString("data", c.Data),
					)
				}
			})
			defer unsub()

			refetch := make(chan struct{}, 1)
			costCenters := wsclient.NewLiveQuery[[]models.CostCenter](manager, nil,
				"/api/cost-centers", handlers.ResourceCostCenters, api.costCenters,
				wsclient.WithOnInvalidate[[]models.CostCenter](func() {
					select {
					case refetch <- struct{}{}:
					default:
					}
				}),
			)
			defer costCenters.Close()

			report := func() {
				items, err := costCenters.Get(ctx)
				if err != nil {
					logger.Warn("fetch cost centers", zap.Error(err))
					return
				}
				logger.Info("cost centers", zap.Int("count", len(items)))
			}

			manager.SetAuthenticated(true)
			defer manager.Disconnect()
			report()

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-refetch:
					report()
				}
			}
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&opts.email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

type apiClient struct {
	base  string
	http  *http.Client
	token string
}

func (a *apiClient) login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(handlers.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/api/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	}
	var out handlers.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("login: decode: %w", err)
	}
	a.token = out.Token
	return nil
}

func (a *apiClient) costCenters(ctx context.Context) ([]models.CostCenter, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+"/api/cost-centers?limit=100", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cost centers: unexpected status %d", resp.StatusCode)
	}
	var out struct {
		CostCenters []models.CostCenter `json:"costCenters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.CostCenters, nil
}
