package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/perpdash/perpdash/internal/domain"
	"github.com/perpdash/perpdash/internal/session"
	"github.com/perpdash/perpdash/internal/wallet"
	"github.com/perpdash/perpdash/pkg/config"
	"github.com/perpdash/perpdash/pkg/logger"
	"github.com/perpdash/perpdash/pkg/secretstore"
	venueclient "github.com/perpdash/perpdash/venue/client"
)

var (
	// 样式定义
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	longStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")) // 绿色

	shortStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")) // 红色

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)

// model 终端面板状态：所有数据都从会话存储读取，自己不保存业务状态
type model struct {
	store *session.Store
	view  session.View

	status string
	err    error
}

// changedMsg 会话存储状态变更信号
type changedMsg struct{}

// tickMsg 界面定时刷新
type tickMsg time.Time

// refreshDoneMsg 手动刷新完成
type refreshDoneMsg struct{ err error }

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitChangeCmd 阻塞等待下一次状态变更信号
func waitChangeCmd(store *session.Store) tea.Cmd {
	return func() tea.Msg {
		<-store.Changed()
		return changedMsg{}
	}
}

func refreshCmd(store *session.Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := store.RefreshMarket(ctx); err != nil {
			return refreshDoneMsg{err: err}
		}
		return refreshDoneMsg{err: store.RefreshSubAccount(ctx)}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitChangeCmd(m.store))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "0", "1", "2", "3", "4", "5", "6", "7":
			id := domain.SubAccountID(key[0] - '0')
			if err := m.store.SetCurrentSubAccount(id); err == nil {
				m.status = fmt.Sprintf("子账户 -> %d", id)
				return m, refreshCmd(m.store)
			}

		case "m":
			// 在市场 0 / 1 之间切换
			next := domain.MarketID(0)
			if m.store.CurrentMarket() == 0 {
				next = 1
			}
			m.store.SetCurrentMarket(next)
			m.status = fmt.Sprintf("市场 -> %d", next)
			return m, refreshCmd(m.store)

		case "r":
			m.status = "刷新中..."
			return m, refreshCmd(m.store)
		}

	case changedMsg:
		m.view = m.store.Snapshot()
		return m, waitChangeCmd(m.store)

	case tickMsg:
		m.view = m.store.Snapshot()
		return m, tickCmd()

	case refreshDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("刷新失败: %v", msg.err)
		} else {
			m.status = "已刷新"
		}
		m.view = m.store.Snapshot()
		return m, nil

	case error:
		m.err = msg
		return m, nil
	}

	return m, nil
}

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("错误: %v\n\n按 q 退出", m.err)
	}
	v := m.view

	var s strings.Builder

	header := fmt.Sprintf("perpdash | 子账户: %d | 市场: %d", v.CurrentSub, v.CurrentMarket)
	if v.Active {
		header += " | " + shortAddr(v.Authority)
	} else {
		header += " | 未连接"
	}
	s.WriteString(headerStyle.Render(header))
	s.WriteString("\n\n")

	market := renderMarket(v.Markets[v.CurrentMarket])
	account := renderSubAccount(v.SubAccount)
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, market, "  ", account))
	s.WriteString("\n\n")

	s.WriteString(renderOrders(v.SubAccount))
	s.WriteString("\n\n")

	if m.status != "" {
		s.WriteString(dimStyle.Render(m.status))
		s.WriteString("\n")
	}
	s.WriteString(dimStyle.Render("0-7 选子账户 | m 切换市场 | r 刷新 | q 退出"))
	return s.String()
}

func renderMarket(snap *domain.MarketSnapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("市场"))
	b.WriteString("\n")
	if snap == nil {
		b.WriteString(dimStyle.Render("等待数据..."))
		return borderStyle.Render(b.String())
	}
	b.WriteString(fmt.Sprintf("%-8s %s\n", "符号", snap.Symbol))
	b.WriteString(fmt.Sprintf("%-8s %s\n", "预言机", snap.OraclePrice.StringFixed(4)))
	b.WriteString(fmt.Sprintf("%-8s %s", "更新于", dimStyle.Render(
		fmt.Sprintf("%v前", time.Since(snap.UpdatedAt).Round(time.Second)))))
	return borderStyle.Render(b.String())
}

func renderSubAccount(snap *domain.SubAccountSnapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("子账户"))
	b.WriteString("\n")
	if snap == nil {
		b.WriteString(dimStyle.Render("无快照（可能未初始化）"))
		return borderStyle.Render(b.String())
	}
	b.WriteString(fmt.Sprintf("%-8s %s (%d)\n", "名称", snap.Label, snap.ID))
	b.WriteString(fmt.Sprintf("%-8s $%s\n", "抵押品", snap.Collateral.StringFixed(2)))
	b.WriteString(fmt.Sprintf("%-8s %s%%", "健康率", snap.HealthRatio.Shift(2).StringFixed(1)))
	return borderStyle.Render(b.String())
}

func renderOrders(snap *domain.SubAccountSnapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("挂单"))
	b.WriteString("\n")
	if snap == nil || len(snap.OpenOrders) == 0 {
		b.WriteString(dimStyle.Render("（无）"))
		return borderStyle.Render(b.String())
	}
	b.WriteString(fmt.Sprintf("%-8s %-6s %-6s %-14s %-12s %s\n",
		"订单", "市场", "方向", "类型", "数量", "价格"))
	for _, o := range snap.OpenOrders {
		dir := longStyle.Render(string(o.Direction))
		if o.Direction == domain.DirectionShort {
			dir = shortStyle.Render(string(o.Direction))
		}
		b.WriteString(fmt.Sprintf("%-8d %-6d %-6s %-14s %-12s %s\n",
			o.OrderID, o.MarketID, dir, o.Kind,
			o.Size.StringFixed(4), o.LimitPrice.StringFixed(4)))
	}
	return borderStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-6:]
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("PERPDASH_CONFIG"), "YAML config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 日志写文件，不污染终端界面
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = "logs/dash.log"
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: logFile,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	w, cleanup, err := loadWallet(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load wallet: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	connector := venueclient.NewConnector(cfg.Venue.Endpoint, cfg.Venue.WSEndpoint)
	store := session.New(connector,
		session.WithPollInterval(time.Duration(cfg.PollIntervalSeconds)*time.Second))
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = store.InitSession(ctx, w)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init session: %v\n", err)
		os.Exit(1)
	}

	m := model{store: store, view: store.Snapshot()}
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		os.Exit(1)
	}
}

// loadWallet 构造钱包能力：环境变量注入的私钥优先，否则读 badger 密钥库
func loadWallet(cfg *config.Config) (wallet.Capability, func(), error) {
	if cfg.Wallet.PrivateKey != "" {
		w, err := wallet.FromBase58(cfg.Wallet.PrivateKey)
		return w, func() {}, err
	}

	keyBytes, err := secretstore.ParseKey(cfg.Wallet.SecretKey)
	if err != nil {
		return wallet.Capability{}, func() {}, err
	}
	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          cfg.Wallet.KeystorePath,
		EncryptionKey: keyBytes,
		ReadOnly:      true,
	})
	if err != nil {
		return wallet.Capability{}, func() {}, err
	}
	w, err := wallet.FromKeystore(store)
	if err != nil {
		_ = store.Close()
		return wallet.Capability{}, func() {}, err
	}
	return w, func() { _ = store.Close() }, nil
}
