package cmd

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	pathpkg "path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/log"

	"vcdis/internal/config"
	"vcdis/internal/disasm"
	"vcdis/internal/listing"
	"vcdis/internal/ui/colorize"
	"vcdis/internal/vcdis/styles"
)

type viewMode int

const (
	viewListing viewMode = iota
	viewRegions
)

type regionItem struct {
	index        int
	name         string
	base         uint32
	size         int
	instructions int
	err          string
}

func (i regionItem) Title() string       { return i.name }
func (i regionItem) Description() string { return "" }
func (i regionItem) FilterValue() string { return i.name }

// itemDelegate renders one region per line.
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(regionItem)
	if !ok {
		return
	}

	indicator := " "
	addrStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	if index == m.Index() {
		indicator = ">"
		addrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	}

	status := fmt.Sprintf("%d instructions", i.instructions)
	if i.err != "" {
		status = lipgloss.NewStyle().Foreground(lipgloss.Color(styles.Error)).Render("failed: " + i.err)
	}

	fmt.Fprintf(w, " %s  %s  %-12s %6d bytes  %s",
		indicator,
		addrStyle.Render(fmt.Sprintf("%08x", i.base)),
		i.name,
		i.size,
		status)
}

type model struct {
	ctx     context.Context
	cfg     config.Config
	logger  *log.Logger
	path    string
	digest  string
	listing disasm.Listing
	err     error

	viewport   viewport.Model
	regionList list.Model
	spinner    spinner.Model
	mode       viewMode
	loading    bool
	width      int
	height     int

	// header and body make up the viewport content; offsets holds the
	// first body line of every region.
	header  string
	body    string
	offsets []int
}

type digestCalculatedMsg struct {
	digest string
}

type listingMsg struct {
	listing disasm.Listing
	err     error
}

func calculateDigestCmd(filepath string) tea.Cmd {
	return func() tea.Msg {
		file, err := os.Open(filepath)
		if err != nil {
			return digestCalculatedMsg{digest: fmt.Sprintf("error: %v", err)}
		}
		defer file.Close()

		hash := sha256.New()
		if _, err := io.Copy(hash, file); err != nil {
			return digestCalculatedMsg{digest: fmt.Sprintf("error: %v", err)}
		}
		return digestCalculatedMsg{digest: fmt.Sprintf("%x", hash.Sum(nil))}
	}
}

func disassembleCmd(ctx context.Context, path string, cfg config.Config, lg *log.Logger) tea.Cmd {
	return func() tea.Msg {
		l, err := disassembleFile(ctx, path, cfg, lg)
		return listingMsg{listing: l, err: err}
	}
}

func NewModel(ctx context.Context, path string, cfg config.Config, lg *log.Logger) model {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(24)

	regionList := list.New([]list.Item{}, itemDelegate{}, 80, 24)
	regionList.SetShowStatusBar(false)
	regionList.SetFilteringEnabled(true)
	regionList.Title = "Regions"
	regionList.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		MarginLeft(2)
	regionList.SetShowHelp(true)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

	if ctx == nil {
		ctx = context.Background()
	}
	m := model{
		ctx:        ctx,
		cfg:        cfg,
		logger:     lg,
		path:       path,
		viewport:   vp,
		regionList: regionList,
		spinner:    s,
		mode:       viewListing,
		loading:    true,
		width:      80,
		height:     24,
	}
	m.updateContent()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		calculateDigestCmd(m.path),
		disassembleCmd(m.ctx, m.path, m.cfg, m.logger),
		m.spinner.Tick,
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case digestCalculatedMsg:
		m.digest = msg.digest
		m.updateContent()
		return m, nil

	case listingMsg:
		m.loading = false
		m.listing = msg.listing
		m.err = msg.err
		m.renderBody()
		m.updateRegionList()
		m.updateContent()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		m.updateContent()
		return m, cmd

	case tea.WindowSizeMsg:
		if msg.Width != m.width || msg.Height != m.height {
			m.width = msg.Width
			m.height = msg.Height
			m.viewport.SetWidth(msg.Width)
			m.viewport.SetHeight(msg.Height - 2)
			m.regionList.SetWidth(msg.Width)
			m.regionList.SetHeight(msg.Height - 2)
			m.updateContent()
		}

	case tea.KeyMsg:
		if m.mode == viewRegions && m.regionList.FilterState() == list.Filtering {
			if k := msg.String(); k == "ctrl+c" {
				return m, tea.Quit
			}
			break
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "l":
			m.mode = viewListing
			return m, nil
		case "r":
			if len(m.listing) > 0 {
				m.mode = viewRegions
			}
			return m, nil
		case "tab", "shift+tab":
			if m.mode == viewListing && len(m.listing) > 0 {
				m.mode = viewRegions
			} else {
				m.mode = viewListing
			}
			return m, nil
		case "enter":
			if m.mode == viewRegions {
				if item, ok := m.regionList.SelectedItem().(regionItem); ok {
					m.gotoRegion(item.index)
					m.mode = viewListing
				}
			}
			return m, nil
		}
	}

	switch m.mode {
	case viewRegions:
		m.regionList, cmd = m.regionList.Update(msg)
	default:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	var content, menu string
	switch m.mode {
	case viewRegions:
		content = m.regionList.View()
		menu = " Enter: jump to region • L: listing • Tab: cycle • Q: quit "
	default:
		content = m.viewport.View()
		if len(m.listing) > 0 {
			menu = " R: regions • Tab: cycle • Q: quit "
		} else {
			menu = " Q: quit "
		}
	}

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)

	return content + "\n" + menuStyle.Render(menu)
}

// renderBody colourises the text listing of every region and records where
// each region starts.
func (m *model) renderBody() {
	var sb strings.Builder
	m.offsets = m.offsets[:0]
	lines := 0
	for _, r := range m.listing {
		var buf bytes.Buffer
		listing.WriteRegion(&buf, r, listing.TextOptions{Binary: m.cfg.Binary})
		text := colorize.ColorizeListing(buf.String())

		m.offsets = append(m.offsets, lines)
		lines += strings.Count(text, "\n")
		sb.WriteString(text)
	}
	m.body = sb.String()
}

func (m *model) updateRegionList() {
	items := make([]list.Item, 0, len(m.listing))
	for i, r := range m.listing {
		items = append(items, regionItem{
			index:        i,
			name:         r.Name,
			base:         r.Base,
			size:         r.Size,
			instructions: r.Lines.Instructions(),
			err:          r.Err,
		})
	}
	m.regionList.SetItems(items)
}

// gotoRegion scrolls the listing to the header of region i.
func (m *model) gotoRegion(i int) {
	if i < 0 || i >= len(m.offsets) {
		return
	}
	m.viewport.SetYOffset(strings.Count(m.header, "\n") + 1 + m.offsets[i])
}

func (m *model) updateContent() {
	relPath := m.path
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := pathpkg.Rel(cwd, m.path); err == nil {
			relPath = rel
		}
	}

	var lines []string
	if dir := pathpkg.Dir(relPath); dir != "." {
		lines = append(lines, fmt.Sprintf("; %s/", dir))
	}
	lines = append(lines, fmt.Sprintf("; %s", pathpkg.Base(relPath)))
	if m.digest != "" {
		lines = append(lines, fmt.Sprintf("; %s", m.digest))
	}
	lines = append(lines, fmt.Sprintf("; grammar %s", m.cfg.Arch))

	markdown := fmt.Sprintf("# vcdis\n\n```\n%s\n```", strings.Join(lines, "\n"))
	if m.loading {
		markdown += fmt.Sprintf("\n\n%s Disassembling...", m.spinner.View())
	}
	if len(m.listing) > 0 {
		markdown += "\n\n| region | base | bytes | instructions |\n|---|---|---|---|\n"
		for _, r := range m.listing {
			markdown += fmt.Sprintf("| %s | 0x%08X | %d | %d |\n", r.Name, r.Base, r.Size, r.Lines.Instructions())
		}
	}
	if m.err != nil {
		markdown += fmt.Sprintf("\n\n> %s\n", strings.ReplaceAll(m.err.Error(), "\n", "\n> "))
	}

	width := m.width
	if width == 0 {
		width = 80
	}
	renderer := styles.GetMarkdownRenderer(width - 2)
	rendered, _ := renderer.Render(markdown)
	m.header = strings.TrimSuffix(rendered, "\n")

	content := m.header
	if m.body != "" {
		content += "\n" + m.body
	}
	m.viewport.SetContent(content)
}
