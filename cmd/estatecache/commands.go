package main

import (
	"context"
	"fmt"
	"time"

	"github.com/saiset-co/estate-client/api"
	"github.com/saiset-co/estate-client/diagnostics"
	"github.com/saiset-co/estate-client/service"
)

type listOutput struct {
	Items     []any `json:"items"`
	Total     int   `json:"total"`
	FromCache bool  `json:"from_cache"`
}

func toListOutput(r api.ListResult) listOutput {
	return listOutput{Items: r.Items, Total: r.Total, FromCache: r.FromCache}
}

type itemOutput struct {
	Item      any  `json:"item"`
	FromCache bool `json:"from_cache"`
}

type listCommand struct {
	Type     string   `long:"type" choice:"SALE" choice:"RENT" description:"listing type"`
	Status   string   `long:"status" description:"listing status" default:"APPROVED"`
	Page     int      `long:"page" default:"1"`
	Limit    int      `long:"limit" default:"20"`
	City     string   `long:"city"`
	Query    string   `short:"q" long:"query" description:"free-text filter, replaces --city"`
	Kind     string   `long:"property-type"`
	MinTotal *float64 `long:"min-total"`
	MaxTotal *float64 `long:"max-total"`
	Repeat   int      `long:"repeat" default:"1" description:"issue the same call this many times"`
}

func (c *listCommand) Execute(_ []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		query := api.PropertyQuery{
			ListingStatus: c.Status,
			ListingType:   c.Type,
			Page:          c.Page,
			Limit:         c.Limit,
			City:          c.City,
			Query:         c.Query,
			PropertyType:  c.Kind,
			MinTotal:      c.MinTotal,
			MaxTotal:      c.MaxTotal,
		}

		for i := 0; i < max(c.Repeat, 1); i++ {
			if err := printJSON(toListOutput(svc.API().ListProperties(ctx, query))); err != nil {
				return err
			}
		}
		return nil
	})
}

type propertyCommand struct {
	Args struct {
		IDs []string `positional-arg-name:"id" required:"1"`
	} `positional-args:"yes"`
}

func (c *propertyCommand) Execute(_ []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		if len(c.Args.IDs) > 1 {
			svc.API().PrefetchProperties(ctx, c.Args.IDs)
		}

		for _, id := range c.Args.IDs {
			res := svc.API().GetProperty(ctx, id)
			if err := printJSON(itemOutput{Item: res.Item, FromCache: res.FromCache}); err != nil {
				return err
			}
		}
		return nil
	})
}

type searchCommand struct {
	Type  string `long:"type" choice:"SALE" choice:"RENT"`
	Limit int    `long:"limit" default:"10"`
	Args  struct {
		Query string `positional-arg-name:"query"`
	} `positional-args:"yes"`
}

func (c *searchCommand) Execute(_ []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		res := svc.API().SearchProperties(ctx, api.SearchQuery{
			Query:       c.Args.Query,
			Limit:       c.Limit,
			ListingType: c.Type,
		})
		return printJSON(toListOutput(res))
	})
}

type profileCommand struct{}

func (c *profileCommand) Execute(_ []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		res := svc.API().GetUserProfile(ctx)
		return printJSON(struct {
			User        any    `json:"user"`
			RoleProfile any    `json:"role_profile"`
			Role        string `json:"role,omitempty"`
		}{res.User, res.RoleProfile, res.Role})
	})
}

type transactionsCommand struct {
	Page  int `long:"page" default:"1"`
	Limit int `long:"limit" default:"20"`
}

func (c *transactionsCommand) Execute(_ []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		return printJSON(toListOutput(svc.API().ListTransactions(ctx, c.Page, c.Limit)))
	})
}

type analyticsCommand struct {
	Period string `long:"period" default:"month" description:"period_type sent to the backend"`
	Year   int    `long:"year"`
}

func (c *analyticsCommand) Execute(_ []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		year := c.Year
		if year == 0 {
			year = time.Now().Year()
		}
		res := svc.API().GetAnalytics(ctx, api.AnalyticsQuery{PeriodType: c.Period, Year: year})
		return printJSON(itemOutput{Item: res.Item, FromCache: res.FromCache})
	})
}

type inspectCommand struct {
	Load bool `long:"load" description:"load the landing page before inspecting"`
	All  bool `long:"all" description:"also list every key of the resource bucket"`
}

func (c *inspectCommand) Execute(_ []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		if c.Load {
			svc.API().Landing(ctx)
		}

		keys := svc.Config().Cache.WellKnownKeys
		if len(keys) == 0 {
			keys = api.LandingKeys()
		}

		fmt.Print(diagnostics.Inspect(svc.API().LandingCache(), keys).String())
		if c.All {
			fmt.Print(diagnostics.InspectAll(svc.API().Cache()).String())
		}
		return nil
	})
}

type warmCommand struct {
	Daemon bool `short:"d" long:"daemon" description:"keep running warmers on their schedules"`
}

func (c *warmCommand) Execute(_ []string) error {
	return withService(func(ctx context.Context, svc *service.Service) error {
		if len(svc.Cron().Jobs()) == 0 {
			return fmt.Errorf("no warmers configured: set warmers.enabled and warmers.jobs")
		}

		if c.Daemon {
			return svc.Run(ctx)
		}

		if err := svc.Cron().RunAll(ctx); err != nil {
			return err
		}

		for _, job := range svc.Cron().Jobs() {
			fmt.Printf("%-20s runs=%d last=%s\n", job.Name, job.RunCount, job.LastDuration.Round(time.Millisecond))
		}
		fmt.Print(diagnostics.InspectAll(svc.API().LandingCache()).String())
		fmt.Print(diagnostics.InspectAll(svc.API().Cache()).String())
		return nil
	})
}
