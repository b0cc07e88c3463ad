package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fmueller/elongate/internal/runner"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersFlags(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	flags := cmd.PersistentFlags()

	tempo := flags.Lookup("tempo")
	require.NotNil(t, tempo)
	require.Equal(t, "t", tempo.Shorthand)
	require.Equal(t, "-15", tempo.DefValue)

	input := flags.Lookup("input-file")
	require.NotNil(t, input)
	require.Equal(t, "i", input.Shorthand)
	require.Equal(t, "in.wav", input.DefValue)

	output := flags.Lookup("output-file")
	require.NotNil(t, output)
	require.Equal(t, "o", output.Shorthand)
	require.Equal(t, "out.wav", output.DefValue)

	for _, name := range []string{"config", "transcoder", "stretcher", "intermediate", "keep-intermediate", "verbose", "json", "no-progress"} {
		require.NotNil(t, flags.Lookup(name), name)
	}
	require.Equal(t, "ffmpeg", flags.Lookup("transcoder").DefValue)
	require.Equal(t, "soundstretch", flags.Lookup("stretcher").DefValue)
}

func TestRootHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "--tempo")
	require.Contains(t, out.String(), "rescale")
	require.Contains(t, out.String(), "check")
	require.Contains(t, out.String(), "config")
}

func TestRunFullPipeline(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeAlignment(t, dir, "speech.ali", "100  A  B  C  D  200  E  F\n\n")

	var calls []string
	var tempo int
	app := fakePipelineApp(t, &calls, &tempo, nil)

	in := filepath.Join(dir, "speech.wav")
	out := filepath.Join(dir, "fast.wav")
	stdout, _, err := runAppCommand(t, app, []string{"-t", "20", "-i", in, "-o", out})
	require.NoError(t, err)

	require.Equal(t, []string{"transcode:speech.wav", "stretch:fast.wav"}, calls)
	require.Equal(t, 20, tempo)
	require.Contains(t, stdout, "tempo: 20\n")
	require.Contains(t, stdout, "input file: "+in+"\n")
	require.Contains(t, stdout, "output file: "+out+"\n")
	require.Contains(t, stdout, "ffmpeg ok\n")
	require.Contains(t, stdout, "soundstretch ok\n")

	got, err := os.ReadFile(filepath.Join(dir, "fast.ali"))
	require.NoError(t, err)
	require.Equal(t, "80  A  B  C  D  160  E  F", string(got))
}

func TestRunNegativeTempoFlag(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeAlignment(t, dir, "in.ali", "100 a b c d 100 e f")

	var calls []string
	var tempo int
	app := fakePipelineApp(t, &calls, &tempo, nil)

	_, _, err := runAppCommand(t, app, []string{"--tempo", "-15", "-i", filepath.Join(dir, "in.wav"), "-o", filepath.Join(dir, "out.wav")})
	require.NoError(t, err)
	require.Equal(t, -15, tempo)

	got, err := os.ReadFile(filepath.Join(dir, "out.ali"))
	require.NoError(t, err)
	require.Equal(t, "115  a  b  c  d  115  e  f", string(got))
}

func TestRunTranscodeFailureStopsPipeline(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var calls []string
	var tempo int
	app := fakePipelineApp(t, &calls, &tempo, &runner.ExitError{Name: "ffmpeg", Code: 1, Stderr: "bad codec"})

	_, _, err := runAppCommand(t, app, []string{"-i", filepath.Join(dir, "in.wav"), "-o", filepath.Join(dir, "out.wav")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad codec")

	var exitErr *runner.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, []string{"transcode:in.wav"}, calls)
}

func TestFlagsOverrideConfigFileAndEnv(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "elongate.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("tempo = 50\ninput_file = \"from-file.wav\"\n"), 0o644))

	app := isolatedApp(t)
	app.lookupEnv = func(key string) (string, bool) {
		if key == "ELONGATE_OUTPUT_FILE" {
			return "from-env.wav", true
		}
		if key == "ELONGATE_TEMPO" {
			return "5", true
		}
		return "", false
	}

	cmd := newRootCmd(app)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--config", cfgPath, "config", "show", "--tempo", "-30"})
	require.NoError(t, cmd.Execute())

	require.Equal(t, -30, app.cfg.Tempo)
	require.Equal(t, "from-file.wav", app.cfg.InputFile)
	require.Equal(t, "from-env.wav", app.cfg.OutputFile)
	require.Contains(t, out.String(), "tempo = -30")
}
