// Runs one funnel, referrer or goal analysis against ClickHouse and prints
// the result as JSON. The funnel definition is read from a JSON file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	C "funnelytics/config"
	"funnelytics/model"
	"funnelytics/store/clickhouse"
	"funnelytics/store/memstore"
	U "funnelytics/util"
)

var (
	websiteID     = flag.String("website_id", "", "Tenant website id to analyse.")
	funnelFile    = flag.String("funnel_file", "", "Path to a funnel definition JSON file.")
	startDate     = flag.String("start_date", "", "Range start as YYYY-MM-DD. Defaults to 30 days back.")
	endDate       = flag.String("end_date", "", "Range end as YYYY-MM-DD. Defaults to today.")
	mode          = flag.String("mode", "funnel", "Analysis mode: funnel, referrer or goal.")
	websiteDomain = flag.String("website_domain", "", "Site hostname, for folding self referrals into direct.")
)

func main() {
	flag.Parse()
	if *websiteID == "" || *funnelFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	conf, err := C.Init()
	if err != nil {
		log.WithError(err).Fatal("Failed initializing config.")
	}

	funnel, err := loadFunnelDefinition(*funnelFile, *websiteID)
	if err != nil {
		log.WithError(err).Fatal("Failed loading funnel definition.")
	}

	client, err := clickhouse.NewClient(conf)
	if err != nil {
		log.WithError(err).Fatal("Failed connecting to ClickHouse.")
	}
	defer client.Close()

	analyzer := model.NewFunnelAnalyzer(
		clickhouse.NewEventStore(client, log.StandardLogger()),
		memstore.NewDefinitionStore(funnel),
		log.StandardLogger(),
	)

	req := model.AnalyticsRequest{
		WebsiteID:     *websiteID,
		FunnelID:      funnel.ID,
		StartDate:     *startDate,
		EndDate:       *endDate,
		WebsiteDomain: *websiteDomain,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var result interface{}
	switch *mode {
	case "funnel":
		result, err = analyzer.RunFunnelAnalytics(ctx, req)
	case "referrer":
		result, err = analyzer.RunFunnelAnalyticsByReferrer(ctx, req)
	case "goal":
		result, err = analyzer.RunGoalAnalytics(ctx, req)
	default:
		log.WithField("mode", *mode).Fatal("Unknown analysis mode.")
	}
	if err != nil {
		log.WithError(err).Fatal("Failed running analysis.")
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.WithError(err).Fatal("Failed encoding result.")
	}
	fmt.Println(string(encoded))
}

func loadFunnelDefinition(path, websiteID string) (*model.FunnelDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var funnel model.FunnelDefinition
	if err := json.Unmarshal(raw, &funnel); err != nil {
		return nil, err
	}
	if funnel.ID == "" {
		funnel.ID = U.GetUUID()
	}
	if funnel.WebsiteID == "" {
		funnel.WebsiteID = websiteID
	}
	return &funnel, nil
}
