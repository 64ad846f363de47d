// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/gorse-io/suggest/base/log"
	"github.com/gorse-io/suggest/cmd/version"
	"github.com/gorse-io/suggest/config"
	"github.com/gorse-io/suggest/engine"
	"github.com/gorse-io/suggest/logics"
	"github.com/gorse-io/suggest/model"
	"github.com/gorse-io/suggest/server"
	"github.com/invopop/jsonschema"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "suggest",
	Short: "Recommend unseen items from historical ratings.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
}

var recommendCommand = &cobra.Command{
	Use:   "recommend USER_ID",
	Short: "Recommend items for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, _ := cmd.Flags().GetString("strategy")
		k, _ := cmd.Flags().GetInt("k")
		n, _ := cmd.Flags().GetInt("n")
		c, err := loadContext(cmd, strategy)
		if err != nil {
			return errors.Trace(err)
		}
		results, err := c.Recommend(cmd.Context(), args[0], strategy, k, n)
		if err != nil {
			return errors.Trace(err)
		}
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Rank", "Item", "Title", "Predicted Rating")
		for i, result := range results {
			if err = table.Append([]string{
				strconv.Itoa(i + 1),
				result.ItemId,
				result.Title,
				strconv.FormatFloat(result.Score, 'f', 4, 64),
			}); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(table.Render())
	},
}

var predictCommand = &cobra.Command{
	Use:   "predict USER_ID ITEM_ID",
	Short: "Predict the rating of a user for an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, _ := cmd.Flags().GetString("strategy")
		k, _ := cmd.Flags().GetInt("k")
		c, err := loadContext(cmd, strategy)
		if err != nil {
			return errors.Trace(err)
		}
		prediction, err := c.Predict(cmd.Context(), args[0], args[1], strategy, k)
		if err != nil {
			return errors.Trace(err)
		}
		if !prediction.Defined {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "no %s prediction for user %s and item %s\n",
				prediction.Source, prediction.UserId, prediction.ItemId)
			return errors.Trace(err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%.4f (%s)\n", prediction.Rating, prediction.Source)
		return errors.Trace(err)
	},
}

var similarityCommand = &cobra.Command{
	Use:   "similarity USER_A USER_B",
	Short: "Compute the similarity between two users",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadContext(cmd, logics.NeighborhoodStrategy)
		if err != nil {
			return errors.Trace(err)
		}
		score, ok, err := c.Similarity(args[0], args[1])
		if err != nil {
			return errors.Trace(err)
		}
		if !ok {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "undefined")
			return errors.Trace(err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%.6f\n", score)
		return errors.Trace(err)
	},
}

var neighborsCommand = &cobra.Command{
	Use:   "neighbors USER_ID ITEM_ID",
	Short: "List the raters of an item most similar to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")
		c, err := loadContext(cmd, logics.NeighborhoodStrategy)
		if err != nil {
			return errors.Trace(err)
		}
		neighbors, err := c.Neighbors(args[0], args[1], k)
		if err != nil {
			return errors.Trace(err)
		}
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("User", "Similarity", "Rating")
		for _, neighbor := range neighbors {
			similarity := "undefined"
			if neighbor.Defined {
				similarity = strconv.FormatFloat(neighbor.Similarity, 'f', 6, 64)
			}
			if err = table.Append([]string{
				neighbor.UserId,
				similarity,
				strconv.FormatFloat(neighbor.Rating, 'f', -1, 64),
			}); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(table.Render())
	},
}

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train the feature model and report its validation RMSE",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadContext(cmd, logics.ModelStrategy)
		if err != nil {
			return errors.Trace(err)
		}
		info := c.ModelInfo()
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Metric", "Value")
		rows := [][]string{
			{"RMSE", strconv.FormatFloat(float64(info.RMSE), 'f', 6, 32)},
			{"Features", strconv.Itoa(info.NFeatures)},
			{"Columns", strconv.Itoa(len(info.Columns))},
		}
		if err = table.Bulk(rows); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(table.Render())
	},
}

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Serve recommendations over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		c, err := engine.Init(ctx, cfg, newProgressTracker(cmd))
		if err != nil {
			return errors.Trace(err)
		}
		s, err := server.NewServer(c, cfg)
		if err != nil {
			return errors.Trace(err)
		}
		if err = s.Serve(ctx); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("stop suggest successfully")
		return nil
	},
}

var configCommand = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var v any
		if schema, _ := cmd.Flags().GetBool("schema"); schema {
			r := &jsonschema.Reflector{FieldNameTag: "mapstructure", DoNotReference: true}
			v = r.Reflect(&config.Config{})
		} else {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return errors.Trace(err)
			}
			cfg.Server.APIKey = redact(cfg.Server.APIKey)
			cfg.Source.URI = log.RedactDBURL(cfg.Source.URI)
			v = cfg
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return errors.Trace(encoder.Encode(v))
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
	},
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "******"
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", path))
	return config.LoadConfig(path)
}

// loadContext loads the dataset. The feature model is trained only when the
// strategy needs it.
func loadContext(cmd *cobra.Command, strategy string) (*engine.Context, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if strategy == "" {
		strategy = cfg.Recommend.Strategy
	}
	if strategy, err = logics.ParseStrategy(strategy); err != nil {
		return nil, errors.Trace(err)
	}
	cfg.Model.Enable = strategy == logics.ModelStrategy
	var tracker model.Tracker
	if cfg.Model.Enable {
		tracker = newProgressTracker(cmd)
	}
	return engine.Init(cmd.Context(), cfg, tracker)
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	for _, cmd := range []*cobra.Command{recommendCommand, predictCommand} {
		cmd.Flags().StringP("strategy", "s", "", "neighborhood or model (default from config)")
		cmd.Flags().IntP("k", "k", 0, "number of neighbors (default from config)")
	}
	recommendCommand.Flags().IntP("n", "n", 0, "number of recommendations (default from config)")
	neighborsCommand.Flags().IntP("k", "k", 0, "number of neighbors (default from config)")
	configCommand.Flags().Bool("schema", false, "print the JSON schema of the configuration file")
	rootCommand.AddCommand(recommendCommand, predictCommand, similarityCommand,
		neighborsCommand, trainCommand, serveCommand, configCommand, versionCommand)
}

func main() {
	if err := rootCommand.ExecuteContext(context.Background()); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
