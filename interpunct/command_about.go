package interpunct

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/shirou/gopsutil/v3/mem"
)

const aboutRepositoryURL = "https://github.com/Bookworm370/interpunctbot"

// handleCommandAbout replies with build info and a few process stats.
func (ip *Interpunct) handleCommandAbout(
	ctx context.Context,
	handler InteractionHandler,
) {
	logger := handler.Logger()

	lines := []string{
		"**interpunct** - button panels, per-server settings and more.",
		fmt.Sprintf("Source: <%s>", aboutRepositoryURL),
		"",
		fmt.Sprintf("Version: `%s` (`%s`)", Version, CommitSHA),
		fmt.Sprintf("Built: `%s`", BuildTime),
		fmt.Sprintf("Go: `%s`", runtime.Version()),
		fmt.Sprintf("Uptime: %s", durationFormat(time.Since(ip.startedAt))),
		fmt.Sprintf("Goroutines: `%d`", runtime.NumGoroutine()),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	lines = append(
		lines,
		fmt.Sprintf("Heap in use: `%.1f MiB`", float64(ms.HeapInuse)/(1<<20)),
	)
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		lines = append(
			lines,
			fmt.Sprintf("Host memory used: `%.1f%%`", vm.UsedPercent),
		)
	} else {
		logger.WarnContext(ctx, "error reading host memory", tint.Err(err))
	}

	err := handler.Respond(
		ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: ephemeralMessage(strings.Join(lines, "\n")),
		},
	)
	if err != nil {
		logger.ErrorContext(ctx, "error responding", tint.Err(err))
	}
}
