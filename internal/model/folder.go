package model

// Folder is the fixed taxonomy a document is filed under.
// The set is closed: every document belongs to exactly one of these
// sixteen categories, with a free-text subitem below it.
type Folder string

const (
	FolderIdentification Folder = "Identification & Documents"
	FolderContacts       Folder = "Important Contacts"
	FolderKeyDevices     Folder = "Key Devices"
	FolderLegal          Folder = "Legal"
	FolderTrusts         Folder = "Trusts"
	FolderTax            Folder = "Tax"
	FolderRealEstate     Folder = "Real Estate"
	FolderInsurance      Folder = "Insurance"
	FolderBankAccounts   Folder = "Bank & Currency Accounts"
	FolderInvestments    Folder = "Investments"
	FolderValuables      Folder = "Valuable Possessions"
	FolderSocialDigital  Folder = "Social & Digital"
	FolderFuneralWishes  Folder = "Funeral Wishes"
	FolderMemoryLane     Folder = "Memory Lane"
	FolderEntrepreneur   Folder = "Entrepreneur"
	FolderCharity        Folder = "Charity"
)

// Folders lists every valid folder in taxonomy order.
func Folders() []Folder {
	return []Folder{
		FolderIdentification,
		FolderContacts,
		FolderKeyDevices,
		FolderLegal,
		FolderTrusts,
		FolderTax,
		FolderRealEstate,
		FolderInsurance,
		FolderBankAccounts,
		FolderInvestments,
		FolderValuables,
		FolderSocialDigital,
		FolderFuneralWishes,
		FolderMemoryLane,
		FolderEntrepreneur,
		FolderCharity,
	}
}

// Valid reports whether f is a member of the fixed taxonomy.
func (f Folder) Valid() bool {
	for _, v := range Folders() {
		if f == v {
			return true
		}
	}
	return false
}

func (f Folder) String() string { return string(f) }
