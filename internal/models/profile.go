package models

// Profile is the signed-in mechanic's shop profile
type Profile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	ShopName     string `json:"shopName,omitempty"`
	ShopOpen     bool   `json:"isShopOpen"`
	ProfileImage string `json:"profileImage,omitempty"`
	Role         string `json:"role,omitempty"`
}

// CarouselSlide is a promotional slide managed from the admin console
type CarouselSlide struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	Link     string `json:"link,omitempty"`
	Order    int    `json:"order"`
}
