package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/bvh_player/bvh"
	"github.com/mogaika/bvh_player/config"
	"github.com/mogaika/bvh_player/player"
	"github.com/mogaika/bvh_player/utils"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <file.bvh>",
	Short: "Print the joint hierarchy and motion summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

var sampleCmd = &cobra.Command{
	Use:   "sample <file.bvh>",
	Short: "Print the propagated pose at a time or frame",
	Args:  cobra.ExactArgs(1),
	RunE:  runSample,
}

var exportCmd = &cobra.Command{
	Use:   "export <file.bvh>",
	Short: "Write the pose at a time as a glTF binary or FBX file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	configCmd.Flags().Bool("encodings", false, "List supported text encodings instead")

	dumpCmd.Flags().Bool("raw", false, "Dump the parsed structures")
	dumpCmd.Flags().Bool("yaml", false, "Print joints as YAML")

	sampleCmd.Flags().Float64("time", 0, "Sample time in seconds")
	sampleCmd.Flags().Int("frame", -1, "Sample an exact frame instead of a time")
	sampleCmd.Flags().Bool("yaml", false, "Print the pose as YAML instead of JSON")
	sampleCmd.Flags().Bool("loop", false, "Wrap time around the motion duration")

	exportCmd.Flags().String("format", player.FormatGLTF, "Output format: gltf or fbx")
	exportCmd.Flags().Float64("time", 0, "Pose time in seconds")
	exportCmd.Flags().String("out", "", "Output directory, config export_dir when empty")
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		skel, frames, err := bvh.ParseFile(args[0], parseOptions(cfg))
		if err != nil {
			return err
		}
		fmt.Fprint(out, utils.SDump(skel, frames))
		return nil
	}

	session, err := player.Load(args[0], parseOptions(cfg), cfg.Loop)
	if err != nil {
		return err
	}

	if asYaml, _ := cmd.Flags().GetBool("yaml"); asYaml {
		data, err := yaml.Marshal(map[string]interface{}{
			"motion": session.Motion(),
			"joints": session.Joints(),
		})
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	m := session.Motion()
	fmt.Fprint(out, session.Describe())
	fmt.Fprintf(out, "frames %d, frame time %v s, duration %v s, %d DOFs\n", m.Frames, m.FrameTime, m.Duration, m.DOFs)
	return nil
}

func runSample(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	loop, _ := cmd.Flags().GetBool("loop")
	session, err := player.Load(args[0], parseOptions(cfg), loop)
	if err != nil {
		return err
	}

	var pose *player.Pose
	if frame, _ := cmd.Flags().GetInt("frame"); frame >= 0 {
		pose, err = session.PoseAtFrame(frame)
	} else {
		t, _ := cmd.Flags().GetFloat64("time")
		pose, err = session.PoseAt(t)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asYaml, _ := cmd.Flags().GetBool("yaml"); asYaml {
		return yaml.NewEncoder(out).Encode(pose)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(pose)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	session, err := player.Load(args[0], parseOptions(cfg), cfg.Loop)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	t, _ := cmd.Flags().GetFloat64("time")
	dir, _ := cmd.Flags().GetString("out")
	if dir == "" {
		dir = cfg.ExportDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path, err := session.ExportFile(dir, format, t)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if list, _ := cmd.Flags().GetBool("encodings"); list {
		for _, name := range config.ListEncodings() {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
