package resource

import (
	"strconv"
	"strings"
)

// Resource type codes as stored in KEY, BIF and ERF index tables.
const (
	TypeBMP  uint16 = 1
	TypeTGA  uint16 = 3
	TypeWAV  uint16 = 4
	TypePLT  uint16 = 6
	TypeINI  uint16 = 7
	TypeTXT  uint16 = 10
	TypeMDL  uint16 = 2002
	TypeNSS  uint16 = 2009
	TypeNCS  uint16 = 2010
	TypeARE  uint16 = 2012
	TypeSET  uint16 = 2013
	TypeIFO  uint16 = 2014
	TypeBIC  uint16 = 2015
	TypeWOK  uint16 = 2016
	Type2DA  uint16 = 2017
	TypeTLK  uint16 = 2018
	TypeTXI  uint16 = 2022
	TypeGIT  uint16 = 2023
	TypeUTI  uint16 = 2025
	TypeUTC  uint16 = 2027
	TypeDLG  uint16 = 2029
	TypeITP  uint16 = 2030
	TypeUTT  uint16 = 2032
	TypeDDS  uint16 = 2033
	TypeUTS  uint16 = 2035
	TypeLTR  uint16 = 2036
	TypeGFF  uint16 = 2037
	TypeFAC  uint16 = 2038
	TypeUTE  uint16 = 2040
	TypeUTD  uint16 = 2042
	TypeUTP  uint16 = 2044
	TypeDFT  uint16 = 2045
	TypeGIC  uint16 = 2046
	TypeGUI  uint16 = 2047
	TypeUTM  uint16 = 2051
	TypeDWK  uint16 = 2052
	TypePWK  uint16 = 2053
	TypeJRL  uint16 = 2056
	TypeUTW  uint16 = 2058
	TypeSSF  uint16 = 2060
	TypeNDB  uint16 = 2064
	TypePTM  uint16 = 2065
	TypePTT  uint16 = 2066
	TypeShd  uint16 = 2067
	TypeERF  uint16 = 9997
	TypeBIF  uint16 = 9998
	TypeKEY  uint16 = 9999
	TypeNone uint16 = 0xFFFF
)

var typeExt = map[uint16]string{
	TypeBMP: "bmp",
	TypeTGA: "tga",
	TypeWAV: "wav",
	TypePLT: "plt",
	TypeINI: "ini",
	TypeTXT: "txt",
	TypeMDL: "mdl",
	TypeNSS: "nss",
	TypeNCS: "ncs",
	TypeARE: "are",
	TypeSET: "set",
	TypeIFO: "ifo",
	TypeBIC: "bic",
	TypeWOK: "wok",
	Type2DA: "2da",
	TypeTLK: "tlk",
	TypeTXI: "txi",
	TypeGIT: "git",
	TypeUTI: "uti",
	TypeUTC: "utc",
	TypeDLG: "dlg",
	TypeITP: "itp",
	TypeUTT: "utt",
	TypeDDS: "dds",
	TypeUTS: "uts",
	TypeLTR: "ltr",
	TypeGFF: "gff",
	TypeFAC: "fac",
	TypeUTE: "ute",
	TypeUTD: "utd",
	TypeUTP: "utp",
	TypeDFT: "dft",
	TypeGIC: "gic",
	TypeGUI: "gui",
	TypeUTM: "utm",
	TypeDWK: "dwk",
	TypePWK: "pwk",
	TypeJRL: "jrl",
	TypeUTW: "utw",
	TypeSSF: "ssf",
	TypeNDB: "ndb",
	TypePTM: "ptm",
	TypePTT: "ptt",
	TypeShd: "shd",
	TypeERF: "erf",
	TypeBIF: "bif",
	TypeKEY: "key",
}

var extType = func() map[string]uint16 {
	m := make(map[string]uint16, len(typeExt))
	for code, ext := range typeExt {
		m[ext] = code
	}
	// hak and mod share the erf container code
	m["hak"] = TypeERF
	m["mod"] = TypeERF
	return m
}()

// TypeExt returns the file extension for a type code.
// Unknown codes yield ok == false.
func TypeExt(code uint16) (ext string, ok bool) {
	ext, ok = typeExt[code]
	return ext, ok
}

// TypeCode returns the type code for a file extension (without the dot).
func TypeCode(ext string) (code uint16, ok bool) {
	code, ok = extType[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return code, ok
}

// IDForCode builds an ID from a resref and a type code. Unknown codes map
// to a numeric extension so the entry stays addressable.
func IDForCode(resRef string, code uint16) ID {
	ext, ok := TypeExt(code)
	if !ok {
		ext = strconv.Itoa(int(code))
	}
	return NewID(resRef, ext)
}
