package core

import (
	"cmp"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"github.com/huangsam/kernscore/schema"
	"gopkg.in/yaml.v3"
)

// builtinCompanies maps email domains to organization names.
var builtinCompanies = map[string]string{
	"huawei.com": "Huawei", "alibaba.com": "Alibaba", "alibaba-inc.com": "Alibaba", "alipay.com": "Alibaba",
	"tencent.com": "Tencent", "baidu.com": "Baidu", "bytedance.com": "ByteDance", "xiaomi.com": "Xiaomi",
	"oppo.com": "OPPO", "vivo.com": "vivo", "zte.com.cn": "ZTE", "zte.com": "ZTE",
	"lenovo.com": "Lenovo", "inspur.com": "Inspur", "hisilicon.com": "HiSilicon", "cambricon.com": "Cambricon",
	"iluvatar.com": "Iluvatar", "biren.tech": "Biren", "loongson.cn": "Loongson", "phytium.com.cn": "Phytium",
	"mediatek.com": "MediaTek", "mstar.com": "MStar", "quectel.com": "Quectel", "gigadevice.com": "GigaDevice",
	"starfivetech.com": "StarFive", "thead.cn": "T-Head", "spacemit.com": "Spacemit", "kylinos.cn": "Kylin",
	"uniontech.com": "UnionTech", "deepin.org": "Deepin", "openanolis.com": "OpenAnolis", "antgroup.com": "AntGroup",
	"jd.com": "JD", "meizu.com": "Meizu", "realme.com": "Realme", "redhat.com.cn": "RedHat China",
	"suse.com": "SUSE", "canonical.com": "Canonical", "collabora.com": "Collabora", "linaro.org": "Linaro",
	"codeaurora.org": "CodeAurora", "baylibre.com": "BayLibre", "bootlin.com": "Bootlin",
	"amd.com": "AMD", "intel.com": "Intel", "nvidia.com": "NVIDIA", "qualcomm.com": "Qualcomm",
	"arm.com": "ARM", "google.com": "Google", "microsoft.com": "Microsoft", "amazon.com": "Amazon",
	"meta.com": "Meta", "apple.com": "Apple", "oracle.com": "Oracle", "ibm.com": "IBM",
	"fujitsu.com": "Fujitsu", "nec.com": "NEC", "renesas.com": "Renesas", "toshiba.com": "Toshiba",
	"synopsys.com": "Synopsys", "broadcom.com": "Broadcom", "cavium.com": "Cavium", "marvell.com": "Marvell",
	"qlogic.com": "QLogic", "emc.com": "EMC", "netronome.com": "Netronome", "pensando.io": "Pensando",
	"vmware.com": "VMware", "xilinx.com": "Xilinx", "altera.com": "Altera", "lattice.com": "Lattice",
	"microchip.com": "Microchip", "nxp.com": "NXP", "infineon.com": "Infineon", "st.com": "STMicroelectronics",
	"ti.com": "Texas Instruments", "adi.com": "Analog Devices", "maxim.com": "Maxim", "linear.com": "Linear",
	"cirrus.com": "Cirrus", "realtek.com": "Realtek", "via.com": "VIA", "rockchip.com": "Rockchip",
	"allwinnertech.com": "Allwinner", "unisoc.com": "Unisoc", "sophgo.com": "Sophgo",
}

// builtinChineseDomains are the domains selected by the companies mode.
var builtinChineseDomains = []string{
	"huawei.com", "alibaba.com", "alibaba-inc.com", "alipay.com",
	"tencent.com", "baidu.com", "bytedance.com", "xiaomi.com",
	"oppo.com", "vivo.com", "zte.com.cn", "zte.com", "lenovo.com",
	"inspur.com", "hisilicon.com", "cambricon.com", "iluvatar.com",
	"biren.tech", "loongson.cn", "phytium.com.cn", "mediatek.com",
	"mstar.com", "quectel.com", "gigadevice.com", "starfivetech.com",
	"thead.cn", "spacemit.com", "kylinos.cn", "uniontech.com",
	"deepin.org", "openanolis.com", "antgroup.com", "jd.com",
	"meizu.com", "realme.com", "redhat.com.cn",
}

type companyDomain struct {
	domain string
	name   string
}

// companyTable resolves email domains to organizations.
type companyTable struct {
	domains []companyDomain // longest domain first
	chinese []string        // sorted
}

// CompaniesFile is the layout of the optional companies override file.
type CompaniesFile struct {
	Companies      map[string]string `yaml:"companies"`
	ChineseDomains []string          `yaml:"chinese_domains"`
}

var companies atomic.Pointer[companyTable]

func init() {
	companies.Store(newCompanyTable(builtinCompanies, builtinChineseDomains))
}

func newCompanyTable(names map[string]string, chinese []string) *companyTable {
	t := &companyTable{}
	for domain, name := range names {
		t.domains = append(t.domains, companyDomain{domain: strings.ToLower(domain), name: name})
	}
	slices.SortFunc(t.domains, func(a, b companyDomain) int {
		if c := cmp.Compare(len(b.domain), len(a.domain)); c != 0 {
			return c
		}
		return cmp.Compare(a.domain, b.domain)
	})
	for _, d := range chinese {
		t.chinese = append(t.chinese, strings.ToLower(d))
	}
	slices.Sort(t.chinese)
	t.chinese = slices.Compact(t.chinese)
	return t
}

// LoadCompaniesFile extends the built-in company table with a YAML file.
// Entries in the file override built-in names for the same domain.
func LoadCompaniesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading companies file: %w", err)
	}
	var file CompaniesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing companies file %s: %w", path, err)
	}
	names := maps.Clone(builtinCompanies)
	maps.Copy(names, file.Companies)
	chinese := append(slices.Clone(builtinChineseDomains), file.ChineseDomains...)
	companies.Store(newCompanyTable(names, chinese))
	return nil
}

// ResetCompanies restores the built-in company table.
func ResetCompanies() {
	companies.Store(newCompanyTable(builtinCompanies, builtinChineseDomains))
}

// emailDomain returns the lower-cased part after the last "@".
func emailDomain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		email = email[i+1:]
	}
	return strings.ToLower(strings.TrimSpace(email))
}

func domainMatches(domain, suffix string) bool {
	return domain == suffix || strings.HasSuffix(domain, "."+suffix)
}

// ExtractCompany resolves an email address to an organization name.
// Unknown domains fall back to their capitalized second-level label.
func ExtractCompany(email string) string {
	domain := emailDomain(email)
	for _, d := range companies.Load().domains {
		if domainMatches(domain, d.domain) {
			return d.name
		}
	}
	parts := strings.Split(domain, ".")
	if len(parts) < 2 || parts[len(parts)-2] == "" {
		return schema.UnknownCompany
	}
	return capitalize(parts[len(parts)-2])
}

// capitalize upper-cases the first rune of s.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// IsChineseCompany reports whether the email belongs to a tracked Chinese company.
func IsChineseCompany(email string) bool {
	domain := emailDomain(email)
	for _, d := range companies.Load().chinese {
		if domainMatches(domain, d) {
			return true
		}
	}
	return false
}

// ChineseCompanyFilter builds a git --author pattern matching every tracked Chinese domain.
func ChineseCompanyFilter() string {
	chinese := companies.Load().chinese
	patterns := make([]string, len(chinese))
	for i, d := range chinese {
		patterns[i] = "@" + d
	}
	return strings.Join(patterns, `\|`)
}
