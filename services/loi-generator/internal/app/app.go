package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/truesoul/outreach/internal/logging"
	"github.com/truesoul/outreach/services/loi-generator/internal/letters"
)

var rootCmd = &cobra.Command{
	Use:   "loi-generator",
	Short: "Letter of intent generator",
	Long:  "Generates all-cash offer letters for stale listings from a leads CSV export",
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate offer letters",
	Long:  "Filters the leads CSV by days-on-market and contact email, and renders one Markdown and one HTML letter per qualifying lead",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New(viper.GetString("log.level"))

		leads, err := letters.LoadLeads(viper.GetString("loi.input"))
		if err != nil {
			return err
		}

		gen := letters.NewGenerator(
			viper.GetString("loi.output_dir"),
			viper.GetFloat64("loi.dom_threshold"),
			log,
		)
		written, err := gen.Generate(leads)
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"leads":   len(leads),
			"letters": written,
		}).Info("Letter generation finished")
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log.level", "info", "Console log level")
	generateCmd.Flags().String("input", "leads.csv", "Leads CSV export")
	generateCmd.Flags().String("output-dir", "loi_output", "Directory letters are written to")
	generateCmd.Flags().Float64("dom-threshold", 90, "Minimum days-on-market for a lead to qualify")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log.level"))
	viper.BindPFlag("loi.input", generateCmd.Flags().Lookup("input"))
	viper.BindPFlag("loi.output_dir", generateCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("loi.dom_threshold", generateCmd.Flags().Lookup("dom-threshold"))

	rootCmd.AddCommand(generateCmd)
}

func initConfig() {
	godotenv.Load(".env.local")
	godotenv.Load(".env")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./services/loi-generator")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
